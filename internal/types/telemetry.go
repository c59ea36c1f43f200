package types

// Telemetry names for CloudWatch. All metric publishers use these constants.
const (
	MetricNamespace = "PingBot"

	// MetricCommandHandled counts recognised commands, split by Result.
	MetricCommandHandled = "CommandHandled"
	// MetricGatewayReady counts READY payloads received from the gateway.
	MetricGatewayReady = "GatewayReady"

	DimCommand = "Command"
	DimResult  = "Result"
)

// MetricResult is the outcome recorded for a handled command.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
)
