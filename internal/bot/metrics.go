package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sony/gobreaker/v2"

	"pingbot/internal/types"
)

// metricsPutTimeout bounds a single PutMetricData call so a slow backend
// cannot hold a gateway callback for long.
const metricsPutTimeout = 2 * time.Second

// Metrics records bot activity. Implementations must not block the caller
// for long and must never fail it.
type Metrics interface {
	RecordCommand(ctx context.Context, command string, result types.MetricResult)
	RecordReady(ctx context.Context)
}

// NoopMetrics discards everything. Used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordCommand(context.Context, string, types.MetricResult) {}
func (NoopMetrics) RecordReady(context.Context)                               {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes bot metrics to CloudWatch.
//
// Metrics emitted:
//   - CommandHandled: Dims {Command, Result}, one per recognised command
//   - GatewayReady: no dims, one per READY payload
//
// Calls go through a circuit breaker. While it is open, data points are
// dropped without contacting CloudWatch.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
	breaker   *gobreaker.CircuitBreaker[*cloudwatch.PutMetricDataOutput]
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
// An empty namespace falls back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}

	cb := gobreaker.NewCircuitBreaker[*cloudwatch.PutMetricDataOutput](gobreaker.Settings{
		Name:        "cloudwatch-metrics",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("metrics circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		breaker:   cb,
	}
}

// NewCloudWatchClient loads the default AWS configuration and returns a
// CloudWatch client. A non-empty endpointURL overrides the service endpoint
// (LocalStack).
func NewCloudWatchClient(ctx context.Context, region, endpointURL string) (*cloudwatch.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	}), nil
}

// RecordCommand emits CommandHandled with Command and Result dimensions.
func (m *CloudWatchMetrics) RecordCommand(ctx context.Context, command string, result types.MetricResult) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricCommandHandled),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(types.DimCommand),
				Value: aws.String(command),
			},
			{
				Name:  aws.String(types.DimResult),
				Value: aws.String(string(result)),
			},
		},
	})
}

// RecordReady emits GatewayReady.
func (m *CloudWatchMetrics) RecordReady(ctx context.Context) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricGatewayReady),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(ctx, metricsPutTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}

	_, err := m.breaker.Execute(func() (*cloudwatch.PutMetricDataOutput, error) {
		return m.client.PutMetricData(ctx, input)
	})
	if err == nil {
		return
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		m.logger.Debug("metric dropped, circuit open",
			"metric", aws.ToString(datum.MetricName),
		)
		return
	}

	m.logger.Error("failed to record metric",
		"error", err.Error(),
		"metric", aws.ToString(datum.MetricName),
	)
}
