package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"

	"fvg_bot/pkg/logger"
)

var serviceName = "fvg_bot"

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

type Config struct {
	Host string
	Port int
}

// InitTracer installs a Jaeger tracer as the global opentracing tracer.
func InitTracer(conf Config) (opentracing.Tracer, func(), error) {
	cfg := &jCfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jCfg.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           false,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(
		jCfg.Metrics(metrics.NullFactory),
	)
	if err != nil {
		return nil, nil, err
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closeFunc(closer), nil
}

func closeFunc(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("closing jaeger tracer: %v", err)
		}
	}
}

// StartSpan starts a child span of whatever span ctx carries. With no tracer
// installed it is the opentracing no-op.
func StartSpan(ctx context.Context, op string, tags ...opentracing.Tag) (opentracing.Span, context.Context) {
	opts := make([]opentracing.StartSpanOption, 0, len(tags))
	for _, t := range tags {
		opts = append(opts, t)
	}
	return opentracing.StartSpanFromContext(ctx, op, opts...)
}

// Fail marks span as errored.
func Fail(span opentracing.Span, err error) {
	if err == nil {
		return
	}
	span.SetTag("error", true)
	span.LogKV("event", "error", "message", err.Error())
}
