package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
	"github.com/GriffinCanCode/game-translator/internal/resilience"
	"github.com/GriffinCanCode/game-translator/internal/trace"
)

// Remote service method names. Requests and replies are google.protobuf.Struct.
const (
	RemoteService         = "ocr.v1.RecognitionService"
	remoteRecognizeMethod = "/" + RemoteService + "/Recognize"
	remoteLanguagesMethod = "/" + RemoteService + "/Languages"

	DefaultRemoteTimeout = 5 * time.Second

	// Sidecars may route or log by language without decoding the body.
	LanguageMetadataKey = "x-language"
)

// Remote is the accurate, slower backend served by a recognition sidecar
// over gRPC. Replies either carry word tokens with confidences or a plain
// text field with an optional confidence.
type Remote struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	breaker *resilience.Breaker
	timeout time.Duration
}

// DialRemote connects to a recognition sidecar. The connection is lazy; a
// missing sidecar surfaces as ENGINE_UNAVAILABLE on first use.
func DialRemote(addr string, opts ...grpc.DialOption) (*Remote, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "dial remote recognition %s", addr)
	}
	return &Remote{
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		breaker: resilience.NewNamed("remote-ocr", resilience.RecognitionConfig()),
		timeout: DefaultRemoteTimeout,
	}, nil
}

func (r *Remote) Name() string { return "remote" }

// Close closes the gRPC connection.
func (r *Remote) Close() error {
	return r.conn.Close()
}

// Available reports whether the sidecar answers health checks as serving.
func (r *Remote) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.health.Check(ctx, &healthpb.HealthCheckRequest{Service: RemoteService})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// Health reports the circuit breaker guarding the sidecar.
func (r *Remote) Health() resilience.Snapshot { return r.breaker.Snapshot() }

// Recognize sends img as PNG together with the language code.
func (r *Remote) Recognize(ctx context.Context, img image.Image, lang string) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{Language: lang}, apperrors.Wrap(err, apperrors.RecognitionFailed, "encode frame")
	}
	req, err := structpb.NewStruct(map[string]any{
		"image_png": base64.StdEncoding.EncodeToString(buf.Bytes()),
		"language":  lang,
	})
	if err != nil {
		return Result{Language: lang}, apperrors.Wrap(err, apperrors.Internal, "build request")
	}

	ctx = metadata.AppendToOutgoingContext(ctx, LanguageMetadataKey, lang)
	reply, err := r.invoke(ctx, remoteRecognizeMethod, req)
	if err != nil {
		return Result{Language: lang}, r.classify(err, lang)
	}
	return parseReply(lang, reply), nil
}

// Languages asks the sidecar for its installed language codes.
func (r *Remote) Languages(ctx context.Context) ([]string, error) {
	reply, err := r.invoke(ctx, remoteLanguagesMethod, &structpb.Struct{})
	if err != nil {
		return nil, r.classify(err, "")
	}
	var langs []string
	for _, v := range reply.GetFields()["languages"].GetListValue().GetValues() {
		if s := strings.TrimSpace(v.GetStringValue()); s != "" {
			langs = append(langs, s)
		}
	}
	return langs, nil
}

func (r *Remote) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	return resilience.ExecuteWithResult(r.breaker, func() (*structpb.Struct, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		reply := new(structpb.Struct)
		if err := r.conn.Invoke(ctx, method, req, reply); err != nil {
			return nil, err
		}
		return reply, nil
	})
}

func (r *Remote) classify(err error, lang string) error {
	if errors.Is(err, resilience.ErrOpen) {
		return unavailable(r.Name(), lang, err)
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.Unimplemented, codes.NotFound:
		return unavailable(r.Name(), lang, err)
	case codes.Canceled:
		return apperrors.Wrap(err, apperrors.Cancelled, "remote recognition cancelled")
	}
	appErr := apperrors.FromGRPCError(err)
	if appErr.Code == apperrors.Unknown || appErr.Code == apperrors.Internal {
		appErr = apperrors.Wrapf(err, apperrors.RecognitionFailed, "remote recognition: %s", appErr.Message)
	}
	if lang != "" {
		appErr.WithMetadata("language", lang)
	}
	return appErr
}

func parseReply(lang string, reply *structpb.Struct) Result {
	fields := reply.GetFields()
	if list := fields["tokens"].GetListValue(); list != nil {
		tokens := make([]Token, 0, len(list.GetValues()))
		for _, v := range list.GetValues() {
			tok := v.GetStructValue().GetFields()
			tokens = append(tokens, Token{
				Text:       tok["text"].GetStringValue(),
				Confidence: tok["confidence"].GetNumberValue(),
			})
		}
		return Assemble(lang, tokens)
	}

	text := strings.TrimSpace(fields["text"].GetStringValue())
	if text == "" {
		return Result{Language: lang}
	}
	conf := UnscoredConfidence
	if v, ok := fields["confidence"]; ok {
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); isNum {
			conf = v.GetNumberValue()
		}
	}
	return Result{Text: text, Language: lang, Confidence: clamp(conf)}
}
