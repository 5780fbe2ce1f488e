// Package mcpserver exposes the Geocoding Orchestrator as an MCP tool
// server over stdio, mirroring NERVsystems-osmmcp's pkg/server +
// pkg/tools layout (mcpserver.NewMCPServer + mcp.NewTool +
// mcp.NewToolResultText/NewToolResultError) with a single geocode_batch
// tool in place of osmmcp's geocode_address/reverse_geocode pair.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sells-group/geo-orchestrator/internal/cache"
	"github.com/sells-group/geo-orchestrator/internal/fallback"
	"github.com/sells-group/geo-orchestrator/internal/jobrecord"
	"github.com/sells-group/geo-orchestrator/internal/model"
	"github.com/sells-group/geo-orchestrator/internal/obs"
	"github.com/sells-group/geo-orchestrator/internal/provider"
	"github.com/sells-group/geo-orchestrator/internal/provider/google"
	"github.com/sells-group/geo-orchestrator/internal/provider/here"
	"github.com/sells-group/geo-orchestrator/internal/provider/osm"
	"github.com/sells-group/geo-orchestrator/internal/ratelimit"
	"github.com/sells-group/geo-orchestrator/internal/scheduler"
)

const (
	// ServerName is the MCP server's self-reported name.
	ServerName = "geo-orchestrator-mcp-server"

	// ServerVersion is the MCP server's self-reported version.
	ServerVersion = "0.1.0"
)

// Credentials carries the provider credentials used to build adapters
// for the geocode_batch tool (spec §6).
type Credentials struct {
	GoogleAPIKey string
	HEREAPIKey   string
	OSMEmail     string
	CountryBias  string
}

// NewServer builds an MCP server with the geocode_batch tool registered,
// and the Prometheus registry its call metrics are recorded against. The
// caller mounts that registry behind a /metrics endpoint (spec §6), per
// NERVsystems-osmmcp's cmd/osmmcp/main.go promhttp wiring.
func NewServer(creds Credentials, order []model.ProviderName, limits ratelimit.Limits) (*mcpgo.MCPServer, *prometheus.Registry) {
	srv := mcpgo.NewMCPServer(
		ServerName,
		ServerVersion,
		mcpgo.WithToolCapabilities(false),
		mcpgo.WithRecovery(),
	)

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	srv.AddTool(geocodeBatchTool(), handleGeocodeBatch(creds, order, limits, metrics))
	return srv, reg
}

// geocodeBatchRow is one row of the geocode_batch tool's "rows" array:
// an opaque map of column name to value, mirroring model.Row.
type geocodeBatchRow map[string]string

type geocodeBatchInput struct {
	Rows    []geocodeBatchRow `json:"rows"`
	Mapping fieldMappingInput `json:"field_mapping"`
	Mode    string            `json:"mode,omitempty"`
}

type fieldMappingInput struct {
	Name        string `json:"name,omitempty"`
	Street      string `json:"street,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	Governorate string `json:"governorate,omitempty"`
	Country     string `json:"country,omitempty"`
	Complement  string `json:"complement,omitempty"`
	FullAddress string `json:"full_address,omitempty"`
}

func (f fieldMappingInput) toModel() model.FieldMapping {
	return model.FieldMapping{
		Name:        f.Name,
		Street:      f.Street,
		PostalCode:  f.PostalCode,
		City:        f.City,
		Governorate: f.Governorate,
		Country:     f.Country,
		Complement:  f.Complement,
		FullAddress: f.FullAddress,
	}
}

type geocodeBatchResultRow struct {
	RowIndex         int     `json:"row_index"`
	Status           string  `json:"status"`
	Latitude         float64 `json:"latitude,omitempty"`
	Longitude        float64 `json:"longitude,omitempty"`
	PrecisionLevel   string  `json:"precision_level,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	APIUsed          string  `json:"api_used,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

type geocodeBatchOutput struct {
	JobID   string                  `json:"job_id"`
	Results []geocodeBatchResultRow `json:"results"`
	Summary jobSummary              `json:"summary"`
}

type jobSummary struct {
	TotalRows          int            `json:"total_rows"`
	SuccessCount       int            `json:"success_count"`
	FailedCount        int            `json:"failed_count"`
	PrecisionHistogram map[string]int `json:"precision_histogram"`
}

func geocodeBatchTool() mcp.Tool {
	return mcp.NewTool("geocode_batch",
		mcp.WithDescription("Geocode a batch of address rows through the HERE/Google/OSM fallback engine and return one result per row, in row order."),
		mcp.WithArray("rows",
			mcp.Required(),
			mcp.Description("Array of row objects; each maps a column name to its string value."),
		),
		mcp.WithObject("field_mapping",
			mcp.Required(),
			mcp.Description("Maps the recognized semantic fields (name, street, postal_code, city, governorate, country, complement, full_address) to this batch's column names."),
		),
		mcp.WithString("mode",
			mcp.Description("Run mode: multi (default), here_only, google_only, or osm_only."),
			mcp.DefaultString("multi"),
		),
	)
}

func handleGeocodeBatch(creds Credentials, order []model.ProviderName, limits ratelimit.Limits, metrics *obs.Metrics) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := zap.L().With(zap.String("tool", "geocode_batch"))

		inputJSON, err := json.Marshal(req.Params.Arguments)
		if err != nil {
			logger.Error("failed to marshal tool arguments", zap.Error(err))
			return mcp.NewToolResultError("invalid input format"), nil
		}

		var input geocodeBatchInput
		if err := json.Unmarshal(inputJSON, &input); err != nil {
			logger.Error("failed to parse geocode_batch input", zap.Error(err))
			return mcp.NewToolResultError("invalid input format"), nil
		}
		if len(input.Rows) == 0 {
			return mcp.NewToolResultError("rows must be non-empty"), nil
		}

		mode := fallback.Mode(input.Mode)
		if mode == "" {
			mode = fallback.ModeMulti
		}

		registry := buildRegistry(creds)
		limiter := ratelimit.New(limits)
		c := cache.New(cache.DefaultCapacity)
		sink := obs.MultiSink{obs.NewZapSink(zap.L()), obs.NewMetricsSink(metrics)}
		engine := fallback.New(registry, c, limiter, sink, order, creds.CountryBias)

		rows := make([]model.Row, len(input.Rows))
		for i, r := range input.Rows {
			rows[i] = model.Row(r)
		}
		mapping := input.Mapping.toModel()

		job := jobrecord.Open("", len(rows))
		results := scheduler.Run(ctx, rows, scheduler.Config{BatchSize: len(rows), WorkerCount: 8}, func(ctx context.Context, rowIndex int, row model.Row) model.Result {
			addr := model.Resolve(row, mapping)
			return engine.Run(ctx, rowIndex, addr, mode)
		})
		job.Finalize(results)

		output := geocodeBatchOutput{
			JobID:   job.JobID,
			Results: make([]geocodeBatchResultRow, len(results)),
			Summary: jobSummary{
				TotalRows:    job.TotalRows,
				SuccessCount: job.SuccessCount,
				FailedCount:  job.FailedCount,
			},
		}
		output.Summary.PrecisionHistogram = make(map[string]int, len(job.PrecisionHistogram))
		for level, n := range job.PrecisionHistogram {
			output.Summary.PrecisionHistogram[string(level)] = n
		}
		for i, r := range results {
			output.Results[i] = geocodeBatchResultRow{
				RowIndex:         r.RowIndex,
				Status:           string(r.Status),
				Latitude:         r.Latitude,
				Longitude:        r.Longitude,
				PrecisionLevel:   string(r.PrecisionLevel),
				FormattedAddress: r.FormattedAddress,
				APIUsed:          string(r.APIUsed),
				ErrorMessage:     r.ErrorMessage,
			}
		}

		resultBytes, err := json.Marshal(output)
		if err != nil {
			logger.Error("failed to marshal geocode_batch result", zap.Error(err))
			return mcp.NewToolResultError("failed to generate result"), nil
		}
		return mcp.NewToolResultText(string(resultBytes)), nil
	}
}

func buildRegistry(creds Credentials) *provider.Registry {
	registry := provider.NewRegistry()
	if creds.HEREAPIKey != "" {
		registry.Register(here.New(creds.HEREAPIKey, here.WithCountryBias(creds.CountryBias)))
	}
	if creds.GoogleAPIKey != "" {
		registry.Register(google.New(creds.GoogleAPIKey, google.WithCountryBias(creds.CountryBias)))
	}
	if creds.OSMEmail != "" {
		registry.Register(osm.New(creds.OSMEmail))
	}
	return registry
}

