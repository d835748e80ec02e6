package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/imkonsowa/restaurants-assistant/compose"
	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/preference"
	"github.com/imkonsowa/restaurants-assistant/recommend"
	"github.com/imkonsowa/restaurants-assistant/retrieval"
)

const (
	GreetingMsg = "Hello! I'm here to help you find the perfect restaurant today.\n\n" +
		"To get started, could you please let me know your preferences?\n\n" +
		"Feel free to mention any specific dietary restrictions or the type of restaurant ambiance you prefer, so I can find the best match for you."
	OffTopicMsg         = "Sorry, I didn't quite catch your dining preference. Could you please rephrase or clarify it?"
	AskLocationMsg      = "Noted! Can you please tell me your starting point? It can be a specific address or an area."
	LocationNotFoundMsg = "I'm sorry, but I wasn't able to find your location. Could you please try rephrasing or provide a different address?"
	TooFarMsg           = "It seems there are no restaurants nearby that match your preferences in our database. Please try entering a different location."
	OutOfRangeMsg       = "Please pick a number from the restaurants listed above."
	ExhaustedMsg        = "I apologize, but I currently don't have any additional recommendations based on your preferences. Please try to specify your preference in more details."
	NewPreferenceMsg    = "Please specify your new preferences"
	NeitherMsg          = "I'm sorry, I didn't quite understand. Let me know if you'd like to see other options, set new preferences, or get more details about a specific restaurant."
)

type Extractor interface {
	Extract(ctx context.Context, input string) (preference.Result, error)
	Locate(ctx context.Context, phrase string) (maps.LatLng, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, preference string) ([]retrieval.Candidate, error)
}

type Ranker interface {
	EnrichAndRank(ctx context.Context, origin maps.LatLng, raw []retrieval.Candidate) ([]recommend.Candidate, error)
}

type Composer interface {
	NextPage(ctx context.Context, ranked []recommend.Candidate, pageIndex int, history []string) (compose.Page, error)
	Detail(ctx context.Context, ranked []recommend.Candidate, pageIndex, ordinal int, origin maps.LatLng) (compose.Detail, error)
}

// Reply is one assistant turn. Sections is set for recommendation pages.
type Reply struct {
	Text     string            `json:"text"`
	Sections []compose.Section `json:"sections,omitempty"`
}

type handler func(ctx context.Context, t *turn)

type turn struct {
	s       *Session
	replies []Reply
}

type Controller struct {
	extractor  Extractor
	retriever  Retriever
	ranker     Ranker
	composer   Composer
	classifier llm.Completer
	observer   Observer

	handlers map[State]handler
}

func NewController(
	extractor Extractor,
	retriever Retriever,
	ranker Ranker,
	composer Composer,
	classifier llm.Completer,
	observer Observer,
) *Controller {
	if observer == nil {
		observer = Observers(nil)
	}

	c := &Controller{
		extractor:  extractor,
		retriever:  retriever,
		ranker:     ranker,
		composer:   composer,
		classifier: classifier,
		observer:   observer,
	}
	c.handlers = map[State]handler{
		StateNone:         c.greet,
		StatePrepare:      c.prepare,
		StateLocation:     c.locate,
		StateGenerate:     c.generate,
		StateContinuation: c.continuation,
	}

	return c
}

// Handle runs one user turn to completion and returns the assistant turns it
// produced. An empty input only advances states that need no input, which
// greets a new session. Turns on the same session never overlap.
func (c *Controller) Handle(ctx context.Context, s *Session, input string) []Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input != "" {
		s.PendingInput = input
		s.say(RoleUser, input)
	}

	t := &turn{s: s}
	for !(s.State.awaitsInput() && s.PendingInput == "") {
		c.handlers[s.State](ctx, t)
	}

	return t.replies
}

func (c *Controller) greet(ctx context.Context, t *turn) {
	c.reply(t, Reply{Text: GreetingMsg})
	c.transition(ctx, t.s, StatePrepare)
}

func (c *Controller) prepare(ctx context.Context, t *turn) {
	s := t.s
	input := s.takeInput()

	res, err := c.extractor.Extract(ctx, input)
	switch {
	case err != nil && res.Preference != "":
		// the preference stands, only the location failed to resolve
		if !errors.Is(err, maps.ErrNotFound) {
			slog.Warn("failed to geocode location", "session", s.ID, "location", res.Location, "err", err)
		}
		s.Preference = res.Preference
		c.fail(ctx, s, FailureNotFound)
		c.reply(t, Reply{Text: LocationNotFoundMsg})
		c.transition(ctx, s, StateLocation)
	case err != nil:
		if !errors.Is(err, preference.ErrOffTopic) {
			slog.Warn("unexpected extraction failure", "session", s.ID, "err", err)
		}
		c.fail(ctx, s, FailureOffTopic)
		c.reply(t, Reply{Text: OffTopicMsg})
	case res.NeedLocation:
		s.Preference = res.Preference
		c.reply(t, Reply{Text: AskLocationMsg})
		c.transition(ctx, s, StateLocation)
	default:
		coords := res.Coordinates
		s.Preference = res.Preference
		s.Location = res.Location
		s.Coordinates = &coords
		c.transition(ctx, s, StateGenerate)
	}
}

func (c *Controller) locate(ctx context.Context, t *turn) {
	s := t.s
	input := s.takeInput()

	coords, err := c.extractor.Locate(ctx, input)
	if err != nil {
		slog.Info("failed to locate user", "session", s.ID, "location", input, "err", err)
		c.fail(ctx, s, FailureNotFound)
		c.reply(t, Reply{Text: LocationNotFoundMsg})
		return
	}

	s.Location = llm.CleanLocation(input)
	s.Coordinates = &coords
	c.transition(ctx, s, StateGenerate)
}

func (c *Controller) generate(ctx context.Context, t *turn) {
	s := t.s
	if s.Coordinates == nil {
		c.reply(t, Reply{Text: AskLocationMsg})
		c.transition(ctx, s, StateLocation)
		return
	}

	ranked, err := c.rank(ctx, s)
	if err != nil {
		slog.Info("no usable candidates", "session", s.ID, "preference", s.Preference, "err", err)
		s.Ranked = nil
		s.PageIndex = 0
		c.fail(ctx, s, FailureTooFar)
		c.reply(t, Reply{Text: TooFarMsg})
		c.transition(ctx, s, StateLocation)
		return
	}

	s.Ranked = ranked
	s.PageIndex = 0
	c.nextPage(ctx, t)
}

func (c *Controller) rank(ctx context.Context, s *Session) ([]recommend.Candidate, error) {
	raw, err := c.retriever.Retrieve(ctx, s.Preference)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", recommend.ErrTooFar, err)
	}

	return c.ranker.EnrichAndRank(ctx, *s.Coordinates, raw)
}

func (c *Controller) nextPage(ctx context.Context, t *turn) {
	s := t.s

	page, err := c.composer.NextPage(ctx, s.Ranked, s.PageIndex, s.transcript())
	if err != nil {
		if !errors.Is(err, compose.ErrExhausted) {
			slog.Warn("failed to compose page", "session", s.ID, "err", err)
		}
		c.fail(ctx, s, FailureExhausted)
		c.reply(t, Reply{Text: ExhaustedMsg})
		s.PageIndex = 0
		c.transition(ctx, s, StatePrepare)
		return
	}

	s.PageIndex = page.Index
	c.observer.Observe(ctx, Event{
		SessionID:  s.ID,
		Kind:       EventPage,
		Page:       page.Index,
		Candidates: len(page.Candidates),
		At:         time.Now(),
	})
	c.reply(t, Reply{Text: page.Text, Sections: page.Sections})
	c.transition(ctx, s, StateContinuation)
}

func (c *Controller) continuation(ctx context.Context, t *turn) {
	s := t.s
	input := s.takeInput()

	intent := c.classify(ctx, s, input)
	switch intent.Kind {
	case llm.IntentContinue:
		c.nextPage(ctx, t)
	case llm.IntentChangePreference:
		s.PageIndex = 0
		c.reply(t, Reply{Text: NewPreferenceMsg})
		c.transition(ctx, s, StatePrepare)
	case llm.IntentOrdinal:
		c.detail(ctx, t, intent.Ordinal)
	default:
		c.reply(t, Reply{Text: NeitherMsg})
	}
}

func (c *Controller) detail(ctx context.Context, t *turn, ordinal int) {
	s := t.s

	var origin maps.LatLng
	if s.Coordinates != nil {
		origin = *s.Coordinates
	}

	detail, err := c.composer.Detail(ctx, s.Ranked, s.PageIndex, ordinal, origin)
	if err != nil {
		c.fail(ctx, s, FailureOutOfRange)
		c.reply(t, Reply{Text: OutOfRangeMsg})
		return
	}

	c.reply(t, Reply{Text: detail.Text})
}

// classify maps the reply to an intent; any model failure counts as neither.
func (c *Controller) classify(ctx context.Context, s *Session, input string) llm.Intent {
	answer, err := c.classifier.Complete(ctx, llm.Request{
		System: fmt.Sprintf(llm.IntentPrompt, input),
	})
	if err != nil {
		slog.Warn("failed to classify reply", "session", s.ID, "err", err)
		return llm.Intent{Kind: llm.IntentNeither}
	}

	intent, err := llm.ParseIntent(answer)
	if err != nil {
		slog.Info("unexpected classification", "session", s.ID, "answer", answer)
		c.fail(ctx, s, FailureMalformedOutput)
	}

	return intent
}

func (c *Controller) reply(t *turn, r Reply) {
	t.s.say(RoleAssistant, r.Text)
	t.replies = append(t.replies, r)
}

func (c *Controller) transition(ctx context.Context, s *Session, to State) {
	if s.State == to {
		return
	}

	from := s.State
	s.State = to
	slog.Info("state transition", "session", s.ID, "from", from, "to", to)

	c.observer.Observe(ctx, Event{
		SessionID: s.ID,
		Kind:      EventTransition,
		From:      from.String(),
		To:        to.String(),
		At:        time.Now(),
	})
}

func (c *Controller) fail(ctx context.Context, s *Session, f Failure) {
	c.observer.Observe(ctx, Event{
		SessionID: s.ID,
		Kind:      EventFailure,
		Failure:   f,
		At:        time.Now(),
	})
}
