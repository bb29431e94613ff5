package proto

import (
	"context"
	"net"
	"testing"

	"EyeTrackServer/engine"
	iface "EyeTrackServer/interface"
	"EyeTrackServer/landmark/landmarktest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startTestServer(t *testing.T) (MetricsServiceClient, *engine.Manager) {
	t.Helper()
	m, err := engine.NewManager(engine.DefaultConfig())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterMetricsServiceServer(s, NewServer(m))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewMetricsServiceClient(conn), m
}

func mustStruct(t *testing.T, v any) *structpb.Struct {
	t.Helper()
	s, err := ToStruct(v)
	require.NoError(t, err)
	return s
}

func frameRequest(id string, fc landmarktest.Face) FrameRequest {
	return FrameRequest{SessionID: id, Frame: iface.NewLandmarkFrame(fc.Frame())}
}

func TestStructRoundTrip(t *testing.T) {
	fc := landmarktest.Open()
	fc.Sequence = 1_000_000
	in := frameRequest("abc", fc)
	var out FrameRequest
	require.NoError(t, FromStruct(mustStruct(t, in), &out))
	assert.Equal(t, in.SessionID, out.SessionID)
	assert.Equal(t, in.Frame.Sequence, out.Frame.Sequence)
	assert.Equal(t, in.Frame.Timestamp, out.Frame.Timestamp)
	require.Len(t, out.Frame.Landmarks, len(in.Frame.Landmarks))
	for i, p := range in.Frame.Landmarks {
		assert.InDeltaSlice(t, p[:], out.Frame.Landmarks[i][:], 1e-12)
	}
}

func TestMetricsService(t *testing.T) {
	client, _ := startTestServer(t)
	ctx := context.Background()

	frames := 1
	resp, err := client.CreateSession(ctx, mustStruct(t, iface.SessionRequest{RequiredConsecutiveFrames: &frames}))
	require.NoError(t, err)
	var created iface.SessionCreated
	require.NoError(t, FromStruct(resp, &created))
	require.NotEmpty(t, created.SessionID)
	id := created.SessionID

	t.Run("ProcessFrame", func(t *testing.T) {
		resp, err := client.ProcessFrame(ctx, mustStruct(t, frameRequest(id, landmarktest.Closed())))
		require.NoError(t, err)
		var m iface.FrameMetrics
		require.NoError(t, FromStruct(resp, &m))
		require.NotNil(t, m.Eyes)
		assert.InDelta(t, 0.1, m.Eyes.Combined, 1e-9)
		assert.True(t, m.Blinked)
		assert.Equal(t, 1, m.TotalBlinks)
		require.NotNil(t, m.Pose)
	})

	t.Run("SessionStatus", func(t *testing.T) {
		resp, err := client.SessionStatus(ctx, mustStruct(t, SessionRef{SessionID: id}))
		require.NoError(t, err)
		var st iface.SessionStatus
		require.NoError(t, FromStruct(resp, &st))
		assert.Equal(t, 1, st.TotalBlinks)
		assert.True(t, st.IsStreaming)
	})

	t.Run("ResetSession", func(t *testing.T) {
		_, err := client.ResetSession(ctx, mustStruct(t, SessionRef{SessionID: id}))
		require.NoError(t, err)
		resp, err := client.SessionStatus(ctx, mustStruct(t, SessionRef{SessionID: id}))
		require.NoError(t, err)
		var st iface.SessionStatus
		require.NoError(t, FromStruct(resp, &st))
		assert.Equal(t, 0, st.TotalBlinks)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := client.SessionStatus(ctx, mustStruct(t, SessionRef{SessionID: "missing"}))
		assert.Equal(t, codes.NotFound, status.Code(err))

		_, err = client.ResetSession(ctx, mustStruct(t, SessionRef{}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		bad := -1.0
		_, err = client.CreateSession(ctx, mustStruct(t, iface.SessionRequest{ClosedThreshold: &bad}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		short := frameRequest(id, landmarktest.Open())
		short.Frame.Landmarks = short.Frame.Landmarks[:10]
		_, err = client.ProcessFrame(ctx, mustStruct(t, short))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		_, err = client.ProcessFrame(ctx, mustStruct(t, frameRequest(id, landmarktest.Open())))
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("DestroySession", func(t *testing.T) {
		_, err := client.DestroySession(ctx, mustStruct(t, SessionRef{SessionID: id}))
		require.NoError(t, err)
		_, err = client.DestroySession(ctx, mustStruct(t, SessionRef{SessionID: id}))
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestStreamFrames(t *testing.T) {
	client, m := startTestServer(t)
	cfg := engine.DefaultConfig()
	cfg.RequiredConsecutiveFrames = 2
	sess, err := m.Create(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := client.StreamFrames(ctx)
	require.NoError(t, err)

	faces := []landmarktest.Face{landmarktest.Closed(), landmarktest.Closed(), landmarktest.Open()}
	for i, fc := range faces {
		fc.Sequence = uint64(i + 1)
		req := frameRequest("", fc)
		if i == 0 {
			req.SessionID = sess.ID
		}
		require.NoError(t, stream.Send(mustStruct(t, req)))
		resp, err := stream.Recv()
		require.NoError(t, err)
		var out iface.FrameMetrics
		require.NoError(t, FromStruct(resp, &out))
		assert.Equal(t, uint64(i+1), out.Sequence)
	}
	assert.Equal(t, 1, sess.Status().TotalBlinks)

	// A stale frame is reported in-band and the stream stays usable.
	stale := landmarktest.Open()
	stale.Sequence = 1
	require.NoError(t, stream.Send(mustStruct(t, frameRequest("", stale))))
	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.Contains(t, resp.GetFields()["error"].GetStringValue(), "out of order")

	require.NoError(t, stream.Send(mustStruct(t, frameRequest("other", landmarktest.Open()))))
	_, err = stream.Recv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStreamFrames_RequiresSession(t *testing.T) {
	client, _ := startTestServer(t)
	stream, err := client.StreamFrames(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Send(mustStruct(t, frameRequest("", landmarktest.Open()))))
	_, err = stream.Recv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
