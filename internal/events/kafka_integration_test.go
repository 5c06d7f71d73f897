//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"actionplan/internal/events"
	"actionplan/pkg/requestcontext"
	"actionplan/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaPublisherSuite) TestPublishedEventIsConsumable() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "actionplan.events.test"

	pub, err := events.NewKafkaPublisher(s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer pub.Close()
	s.Require().NoError(pub.Ping(ctx))

	ctx = requestcontext.WithRequestID(ctx, "req-1")
	sent := events.New(ctx, events.EnterpriseImported, "C-42", map[string]string{"findings": "3"})
	s.Require().NoError(pub.Publish(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	rec := records[0]
	s.Equal("C-42", string(rec.Key))
	var got events.Event
	s.Require().NoError(json.Unmarshal(rec.Value, &got))
	s.Equal(sent.ID, got.ID)
	s.Equal(events.EnterpriseImported, got.Type)
	s.Equal("req-1", got.RequestID)
	s.Equal("3", got.Attributes["findings"])
}
