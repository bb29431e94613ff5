package proto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"EyeTrackServer/engine"
	iface "EyeTrackServer/interface"
	"EyeTrackServer/landmark"
	"EyeTrackServer/logger"
	"EyeTrackServer/monitor"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type SessionRef struct {
	SessionID string `json:"sessionID"`
}

type FrameRequest struct {
	SessionID string              `json:"sessionID"`
	Frame     iface.LandmarkFrame `json:"frame"`
}

// ToStruct converts a JSON-shaped value into a Struct message.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromStruct decodes a Struct message into v.
func FromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type Server struct {
	manager *engine.Manager
}

func NewServer(m *engine.Manager) *Server {
	return &Server{manager: m}
}

func (s *Server) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	monitor.GRPCTotal.Inc()
	var in iface.SessionRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	sess, err := s.manager.Create(in.Apply(s.manager.Defaults()))
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(iface.SessionCreated{
		SessionID:     sess.ID,
		IdleTimeoutMs: s.manager.IdleTimeout().Milliseconds(),
	})
}

func (s *Server) ProcessFrame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	monitor.GRPCTotal.Inc()
	var in FrameRequest
	if err := FromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	m, err := s.process(in)
	if err != nil {
		return nil, err
	}
	return ToStruct(iface.NewFrameMetrics(m))
}

func (s *Server) ResetSession(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	monitor.GRPCTotal.Inc()
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Reset(id); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) DestroySession(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	monitor.GRPCTotal.Inc()
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Destroy(id); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) SessionStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	monitor.GRPCTotal.Inc()
	id, err := sessionID(req)
	if err != nil {
		return nil, err
	}
	sess, err := s.manager.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return ToStruct(iface.NewSessionStatus(sess.Status()))
}

// StreamFrames binds the stream to the session named by its first message.
// Later messages may omit sessionID but must not name another session. Frame
// level failures are answered with {"error": ...} and the stream continues;
// losing the session ends it.
func (s *Server) StreamFrames(stream grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]) error {
	monitor.GRPCTotal.Inc()
	var bound string
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		var in FrameRequest
		if err := FromStruct(req, &in); err != nil {
			return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
		}
		switch {
		case bound == "" && in.SessionID == "":
			return status.Error(codes.InvalidArgument, "first message must carry sessionID")
		case bound == "":
			bound = in.SessionID
			logger.Log().Info("gRPC stream opened", zap.String("ID", bound))
		case in.SessionID != "" && in.SessionID != bound:
			return status.Errorf(codes.InvalidArgument, "stream is bound to session %s", bound)
		}
		in.SessionID = bound

		var reply any
		m, err := s.process(in)
		switch {
		case err == nil:
			reply = iface.NewFrameMetrics(m)
		case status.Code(err) == codes.NotFound:
			return err
		default:
			reply = map[string]any{"error": status.Convert(err).Message()}
		}
		out, err := ToStruct(reply)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.Send(out); err != nil {
			return err
		}
	}
}

func (s *Server) process(in FrameRequest) (engine.FrameMetrics, error) {
	if in.SessionID == "" {
		return engine.FrameMetrics{}, status.Error(codes.InvalidArgument, "sessionID is required")
	}
	if err := in.Frame.Validate(); err != nil {
		return engine.FrameMetrics{}, status.Error(codes.InvalidArgument, err.Error())
	}
	m, err := s.manager.Process(in.SessionID, in.Frame.ToFrame())
	if err != nil {
		return engine.FrameMetrics{}, toStatus(err)
	}
	return m, nil
}

func sessionID(req *structpb.Struct) (string, error) {
	var ref SessionRef
	if err := FromStruct(req, &ref); err != nil {
		return "", status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if ref.SessionID == "" {
		return "", status.Error(codes.InvalidArgument, "sessionID is required")
	}
	return ref.SessionID, nil
}

func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, engine.ErrDuplicateSession):
		code = codes.AlreadyExists
	case errors.Is(err, engine.ErrSessionFailed), errors.Is(err, engine.ErrFrameOutOfOrder):
		code = codes.FailedPrecondition
	case errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, landmark.ErrInvalidLandmarkCount),
		errors.Is(err, landmark.ErrInvalidFrameSize),
		errors.Is(err, landmark.ErrInvalidCoordinate),
		errors.Is(err, landmark.ErrInsufficientPoints),
		errors.Is(err, landmark.ErrIndexOutOfRange):
		code = codes.InvalidArgument
	}
	return status.Error(code, err.Error())
}

// StartGRPCServer listens on port and serves in the background. The caller
// stops it with GracefulStop.
func StartGRPCServer(port int, m *engine.Manager) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s := grpc.NewServer()
	RegisterMetricsServiceServer(s, NewServer(m))
	go func() {
		logger.Log().Info("gRPC server listening", zap.Int("port", port))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
