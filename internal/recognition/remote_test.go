package recognition

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
	"github.com/GriffinCanCode/game-translator/internal/trace"
)

type sidecar struct {
	reply     func(lang string) (map[string]any, error)
	lastTrace trace.Context
	lastMeta  metadata.MD
}

func (s *sidecar) recognize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.lastTrace, _ = trace.FromContext(ctx)
	s.lastMeta, _ = metadata.FromIncomingContext(ctx)
	fields := req.GetFields()
	if fields["image_png"].GetStringValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing image")
	}
	out, err := s.reply(fields["language"].GetStringValue())
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(out)
}

var sidecarDesc = grpc.ServiceDesc{
	ServiceName: RemoteService,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Recognize",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(*sidecar).recognize(ctx, req.(*structpb.Struct))
				}
				if interceptor == nil {
					return handler(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: remoteRecognizeMethod}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "Languages",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				handler := func(context.Context, any) (any, error) {
					return structpb.NewStruct(map[string]any{"languages": []any{"eng", "jpn", " "}})
				}
				if interceptor == nil {
					return handler(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: remoteLanguagesMethod}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
}

func startSidecar(t *testing.T, sc *sidecar) *Remote {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	srv.RegisterService(&sidecarDesc, sc)
	hs := health.NewServer()
	hs.SetServingStatus(RemoteService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	remote, err := DialRemote("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })
	return remote
}

func TestRemoteTokens(t *testing.T) {
	sc := &sidecar{reply: func(lang string) (map[string]any, error) {
		return map[string]any{"tokens": []any{
			map[string]any{"text": "START", "confidence": 88.0},
			map[string]any{"text": "noise", "confidence": 0.0},
			map[string]any{"text": "GAME", "confidence": 76.0},
		}}, nil
	}}
	remote := startSidecar(t, sc)

	tc := trace.New()
	res, err := remote.Recognize(trace.WithContext(context.Background(), tc), blank(), "eng")
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "START GAME", Language: "eng", Confidence: 82}, res)
	assert.Equal(t, tc.TraceID, sc.lastTrace.TraceID, "trace id should reach the sidecar")
	assert.Equal(t, []string{"eng"}, sc.lastMeta.Get(LanguageMetadataKey))
}

func TestRemotePlainTextWithoutConfidence(t *testing.T) {
	remote := startSidecar(t, &sidecar{reply: func(string) (map[string]any, error) {
		return map[string]any{"text": "  你好  "}, nil
	}})

	res, err := remote.Recognize(context.Background(), blank(), "chi_sim")
	require.NoError(t, err)
	assert.Equal(t, "你好", res.Text)
	assert.Equal(t, UnscoredConfidence, res.Confidence)
}

func TestRemotePlainTextWithConfidence(t *testing.T) {
	remote := startSidecar(t, &sidecar{reply: func(string) (map[string]any, error) {
		return map[string]any{"text": "hola", "confidence": 64.5}, nil
	}})

	res, err := remote.Recognize(context.Background(), blank(), "spa")
	require.NoError(t, err)
	assert.InDelta(t, 64.5, res.Confidence, 1e-9)
}

func TestRemoteEmptyReply(t *testing.T) {
	remote := startSidecar(t, &sidecar{reply: func(string) (map[string]any, error) {
		return map[string]any{}, nil
	}})

	res, err := remote.Recognize(context.Background(), blank(), "eng")
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Zero(t, res.Confidence)
}

func TestRemoteErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code apperrors.Code
	}{
		{"missing language pack", status.Error(codes.NotFound, "no kor model"), apperrors.EngineUnavailable},
		{"sidecar overloaded", status.Error(codes.Unavailable, "busy"), apperrors.EngineUnavailable},
		{"bad frame", status.Error(codes.InvalidArgument, "corrupt"), apperrors.InvalidArgument},
		{"model crash", status.Error(codes.Internal, "segfault"), apperrors.RecognitionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := startSidecar(t, &sidecar{reply: func(string) (map[string]any, error) { return nil, tt.err }})
			_, err := remote.Recognize(context.Background(), blank(), "kor")
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.code), "error %v should carry %s", err, tt.code)
		})
	}
}

func TestRemoteLanguagesAndHealth(t *testing.T) {
	remote := startSidecar(t, &sidecar{})

	langs, err := remote.Languages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "jpn"}, langs)
	assert.True(t, remote.Available(context.Background()))
}

func TestRemoteUnreachable(t *testing.T) {
	lis := bufconn.Listen(1024)
	require.NoError(t, lis.Close())

	remote, err := DialRemote("passthrough:///gone", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer remote.Close()

	_, err = remote.Recognize(context.Background(), blank(), "eng")
	assert.True(t, IsEngineUnavailable(err), "got %v", err)
	assert.False(t, remote.Available(context.Background()))
}
