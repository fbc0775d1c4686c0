package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/telco-platform/agent-deployer/pkg/schemas"
)

// maxRecordedAnswerLength bounds the response excerpt kept in smoke-test
// reports.
const maxRecordedAnswerLength = 120

// EndpointQuerier issues agent queries against a live serving endpoint.
type EndpointQuerier interface {
	QueryEndpoint(ctx context.Context, name string, query schemas.AgentQuery) (schemas.AgentResponse, error)
}

// SmokeTestEndpoint runs every configured case against the live endpoint and
// collects the per-case outcomes. Cases are independent: a failing case is
// recorded and the remaining ones still run. A case passes when the endpoint
// answers without error and with a non-empty output.
func SmokeTestEndpoint(ctx context.Context, querier EndpointQuerier, endpointName string, cases []schemas.AgentQuery) schemas.SmokeTestReport {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline:SmokeTestEndpoint", trace.WithAttributes(
		attribute.String("endpoint_name", endpointName),
		attribute.Int("cases_count", len(cases)),
	))
	defer span.End()

	report := schemas.SmokeTestReport{
		EndpointName: endpointName,
		Results:      make([]schemas.SmokeTestCaseResult, 0, len(cases)),
	}

	log.WithFields(log.Fields{
		"endpoint-name": endpointName,
		"cases-count":   len(cases),
	}).Info("smoke testing endpoint")

	for _, c := range cases {
		result := schemas.SmokeTestCaseResult{
			Description: c.Label(),
		}

		resp, err := querier.QueryEndpoint(ctx, endpointName, c)

		switch {
		case err != nil:
			result.Error = err.Error()
		case resp.Empty():
			result.Error = "endpoint returned an empty output"
		default:
			result.Passed = true
			result.Answer = truncate(resp.FirstText(), maxRecordedAnswerLength)
		}

		if result.Passed {
			log.WithFields(log.Fields{
				"endpoint-name": endpointName,
				"case":          result.Description,
			}).Debug("smoke-test case passed")
		} else {
			log.WithFields(log.Fields{
				"endpoint-name": endpointName,
				"case":          result.Description,
				"error":         result.Error,
			}).Warn("smoke-test case failed")
		}

		report.Results = append(report.Results, result)
	}

	report.RanAt = time.Now().UTC()

	log.WithFields(log.Fields{
		"endpoint-name": endpointName,
		"passed":        report.PassedCount(),
		"failed":        report.FailedCount(),
	}).Info("smoke test finished")

	return report
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n]) + "..."
}
