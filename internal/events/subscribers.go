package events

import (
	"encoding/json"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"

	"github.com/asaskevich/EventBus"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

// StreamLifecycle is the SSE stream lifecycle events are mirrored to.
const StreamLifecycle = "lifecycle"

type Subscriber struct {
	log zerolog.Logger
	bus EventBus.Bus
	sse logger.SSEPublisher
}

func NewSubscribers(log logger.Logger, bus EventBus.Bus, pub logger.SSEPublisher) Subscriber {
	s := Subscriber{
		log: log.With().Str("module", "events").Logger(),
		bus: bus,
		sse: pub,
	}

	s.Register()

	return s
}

func (s Subscriber) Register() {
	_ = s.bus.Subscribe(domain.EventTopicTransition, s.onTransition)
	_ = s.bus.Subscribe(domain.EventTopicSweep, s.onSweep)
	_ = s.bus.Subscribe(domain.EventTopicSweepFailed, s.onSweepFailed)
	_ = s.bus.Subscribe(domain.EventTopicRestore, s.onRestore)
}

func (s Subscriber) onTransition(evt *domain.TransitionEvent) {
	s.log.Trace().Str("kind", string(evt.Kind)).Str("id", evt.ID).Str("to", string(evt.To)).Msg("transition event")
	s.forward(domain.EventTopicTransition, evt)
}

func (s Subscriber) onSweep(evt *domain.SweepEvent) {
	s.log.Trace().Str("job", evt.Job).Str("kind", string(evt.Kind)).Int64("affected", evt.Affected).Msg("sweep event")
	s.forward(domain.EventTopicSweep, evt)
}

// onSweepFailed is the operator facing signal of a failed bulk statement.
func (s Subscriber) onSweepFailed(evt *domain.SweepEvent) {
	s.log.Warn().Str("job", evt.Job).Str("kind", string(evt.Kind)).Str("error", evt.Error).Msg("sweep statement failed, will run again on the next schedule")
	s.forward(domain.EventTopicSweepFailed, evt)
}

func (s Subscriber) onRestore(evt *domain.RestoreEvent) {
	s.log.Trace().Str("task_id", evt.TaskID).Int64("restored", evt.Restored).Msg("restore event")
	s.forward(domain.EventTopicRestore, evt)
}

func (s Subscriber) forward(topic string, payload interface{}) {
	if s.sse == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("could not encode event")
		return
	}

	s.sse.Publish(StreamLifecycle, &sse.Event{
		Event: []byte(topic),
		Data:  data,
	})
}
