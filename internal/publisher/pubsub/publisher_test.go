package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/storage/memory"
)

func newTestServer(t *testing.T) (*pstest.Server, []option.ClientOption) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, []option.ClientOption{option.WithGRPCConn(conn)}
}

func newTestPublisher(t *testing.T) (*pstest.Server, *Publisher) {
	t.Helper()
	ctx := context.Background()

	srv, opts := newTestServer(t)
	client, err := pubsub.NewClient(ctx, "test-project", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "accidents")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)

	pub, err := New(topic, memory.NewBlobStore(), Config{})
	require.NoError(t, err)
	return srv, pub
}

func TestSubmitPublishesJSON(t *testing.T) {
	srv, pub := newTestPublisher(t)
	ntsbNo := "CEN22LA123"

	id, err := pub.Submit(context.Background(), feed.Document{
		EventID:    "20220401X00001",
		NTSBNumber: &ntsbNo,
		Title:      "[1 Fatal] CESSNA 172",
		Body:       "# NTSB Final Narrative\n\ntext",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "20220401X00001", msgs[0].Attributes["event_id"])
	assert.Equal(t, "CEN22LA123", msgs[0].Attributes["ntsb_no"])
	assert.Len(t, msgs[0].Attributes["body_sha256"], 64)

	var payload Message
	require.NoError(t, json.Unmarshal(msgs[0].Data, &payload))
	assert.Equal(t, "[1 Fatal] CESSNA 172", payload.Title)
	assert.Equal(t, "# NTSB Final Narrative\n\ntext", payload.Body)
	require.NotNil(t, payload.NTSBNumber)
	assert.Equal(t, ntsbNo, *payload.NTSBNumber)
}

func TestDescriptionRoundTrip(t *testing.T) {
	_, pub := newTestPublisher(t)
	ctx := context.Background()

	desc, err := pub.Description(ctx)
	require.NoError(t, err)
	assert.Empty(t, desc)

	require.NoError(t, pub.SetDescription(ctx, "Accident reports, updated 01/04/2022"))
	desc, err = pub.Description(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Accident reports, updated 01/04/2022", desc)
}

func TestDialRequiresExistingTopic(t *testing.T) {
	ctx := context.Background()
	_, opts := newTestServer(t)

	_, err := Dial(ctx, "test-project", "missing", memory.NewBlobStore(), Config{}, opts...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, memory.NewBlobStore(), Config{})
	assert.Error(t, err)
}
