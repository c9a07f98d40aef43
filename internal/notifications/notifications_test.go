package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func TestDispatcher_FansOutAndStampsEvents(t *testing.T) {
	first := new(MockPublisher)
	second := new(MockPublisher)
	stamped := mock.MatchedBy(func(e Event) bool {
		return e.ID != uuid.Nil && !e.OccurredAt.IsZero() && e.Type == EventProjectExpired
	})
	first.On("Publish", mock.Anything, stamped).Return(nil).Once()
	second.On("Publish", mock.Anything, stamped).Return(errors.New("topic unavailable")).Once()

	d := NewDispatcher(zap.NewNop(), 0, first, second)
	d.Dispatch(Event{Type: EventProjectExpired, EntityID: uuid.New()})
	d.Wait()

	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Dispatch(Event{Type: EventRequestCreated})
		d.Wait()
	})
}

func TestSNSPublisher_Publish(t *testing.T) {
	client := new(MockSNS)
	projectID := uuid.New()
	event := Event{
		ID:        uuid.New(),
		Type:      EventProjectStatusChanged,
		EntityID:  projectID,
		ProjectID: &projectID,
		ActorName: "System",
		Payload:   map[string]any{"to": "Expired"},
	}

	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		if *in.TopicArn != "arn:aws:sns:us-east-1:123456789012:portal-events" {
			return false
		}
		attr, ok := in.MessageAttributes["event_type"]
		if !ok || *attr.StringValue != string(EventProjectStatusChanged) {
			return false
		}
		var decoded Event
		if err := json.Unmarshal([]byte(*in.Message), &decoded); err != nil {
			return false
		}
		return decoded.ID == event.ID && decoded.Type == event.Type
	})).Return(&sns.PublishOutput{}, nil).Once()

	p := NewSNSPublisher(client, "arn:aws:sns:us-east-1:123456789012:portal-events")
	require.NoError(t, p.Publish(context.Background(), event))
	client.AssertExpectations(t)
}

func TestSNSPublisher_WrapsClientError(t *testing.T) {
	client := new(MockSNS)
	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

	p := NewSNSPublisher(client, "arn:aws:sns:us-east-1:123456789012:portal-events")
	err := p.Publish(context.Background(), Event{Type: EventDiscussionOpened})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discussion.opened")
	assert.Contains(t, err.Error(), "throttled")
}
