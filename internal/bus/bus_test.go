package bus

import (
	"testing"

	"github.com/dennisjooo/moodlist/internal/api"
)

func TestDispatcher(t *testing.T) {
	t.Run("DeliversToTopicSubscribers", func(t *testing.T) {
		d := NewDispatcher()

		var got []Event
		d.Subscribe(TopicWorkflowStarted, func(event Event) {
			got = append(got, event)
		})

		d.Publish(TopicWorkflowStarted, WorkflowStarted{SessionID: "s1", MoodPrompt: "late night"})
		d.Publish(TopicAuthUpdated, AuthUpdated{})

		if len(got) != 1 {
			t.Fatalf("expected 1 event, got %d", len(got))
		}
		payload, ok := got[0].Payload.(WorkflowStarted)
		if !ok || payload.SessionID != "s1" {
			t.Errorf("unexpected payload: %+v", got[0].Payload)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		d := NewDispatcher()

		calls := 0
		unsub := d.Subscribe(TopicWorkflowFinished, func(Event) { calls++ })

		d.Publish(TopicWorkflowFinished, WorkflowFinished{SessionID: "s1", Stage: api.StageCompleted})
		unsub()
		d.Publish(TopicWorkflowFinished, WorkflowFinished{SessionID: "s1", Stage: api.StageFailed})

		if calls != 1 {
			t.Errorf("expected 1 call after unsubscribe, got %d", calls)
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		d := NewDispatcher()

		first, second := 0, 0
		d.Subscribe(TopicAuthUpdated, func(Event) { first++ })
		d.Subscribe(TopicAuthUpdated, func(Event) { second++ })

		d.Publish(TopicAuthUpdated, AuthUpdated{Validated: true})

		if first != 1 || second != 1 {
			t.Errorf("expected both subscribers called once, got %d and %d", first, second)
		}
	})

	t.Run("PublishWithoutSubscribers", func(t *testing.T) {
		d := NewDispatcher()
		// Must not panic.
		d.Publish(TopicWorkflowStarted, WorkflowStarted{SessionID: "s1"})
	})
}
