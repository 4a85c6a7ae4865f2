package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/auditlens/pkg/kit"
	"github.com/hazyhaar/auditlens/pkg/report"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the audit tools on the server.
func RegisterMCPTools(srv *server.MCPServer, store *session.Store, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	mw := func(name string) kit.Middleware {
		return kit.Chain(kit.Recover(logger), kit.Logging(logger, name))
	}
	registerListCategories(srv, mw("list_categories")(categoriesEndpoint(store)))
	registerLoadWorkbook(srv, mw("load_workbook")(loadFileEndpoint(store)))
	registerAnalyzeSession(srv, mw("analyze_session")(reportEndpoint(store)))
	registerCriticalStock(srv, mw("critical_stock")(stockEndpoint(store)), catalogIDs(store))
	registerClassifyObservation(srv, mw("classify_observation")(classifyEndpoint(store)))
}

func registerListCategories(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("list_categories",
		mcp.WithDescription("List the observation categories, their keywords and the equipment catalogs."),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	})
}

func registerLoadWorkbook(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("load_workbook",
		mcp.WithDescription("Load an audit .xlsx workbook from the server filesystem and open a session on it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the workbook")),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		path, err := kit.RequiredStringArg(req, "path")
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &loadFileReq{Path: path}}, nil
	})
}

func registerAnalyzeSession(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("analyze_session",
		mcp.WithDescription("Build the full audit report of a session: KPIs by company, rankings and critical stock."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by load_workbook")),
		mcp.WithString("technician", mcp.Description("Only this technician")),
		mcp.WithString("company", mcp.Description("Only this company")),
		mcp.WithString("type", mcp.Description("Only this audit type")),
		mcp.WithString("from", mcp.Description("Technician ranking start date (dd/mm/yyyy)")),
		mcp.WithString("to", mcp.Description("Technician ranking end date (dd/mm/yyyy)")),
		mcp.WithString("day", mcp.Description("Day of the per-auditor daily count (dd/mm/yyyy)")),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		id, err := kit.RequiredStringArg(req, "session_id")
		if err != nil {
			return nil, err
		}
		opts := report.Options{Filter: report.Filter{
			Technician: kit.StringArg(req, "technician"),
			Company:    kit.StringArg(req, "company"),
			AuditType:  kit.StringArg(req, "type"),
		}}
		dates := []struct {
			name string
			dst  **time.Time
		}{{"from", &opts.Range.From}, {"to", &opts.Range.To}, {"day", &opts.Day}}
		for _, d := range dates {
			if *d.dst, err = parseDay(kit.StringArg(req, d.name)); err != nil {
				return nil, fmt.Errorf("%s: %w", d.name, err)
			}
		}
		return &kit.MCPDecodeResult{
			Request:   &reportReq{ID: id, Opts: opts},
			EnrichCtx: sessionCtx(id),
		}, nil
	})
}

func registerCriticalStock(srv *server.MCPServer, ep kit.Endpoint, catalogs []string) {
	tool := mcp.NewTool("critical_stock",
		mcp.WithDescription("List technicians whose latest completed audit lacks equipment of a catalog."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by load_workbook")),
		mcp.WithString("catalog", mcp.Required(), mcp.Description("Catalog id"), mcp.Enum(catalogs...)),
		mcp.WithString("company", mcp.Description("Only this company")),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		id, err := kit.RequiredStringArg(req, "session_id")
		if err != nil {
			return nil, err
		}
		catalog, err := kit.RequiredStringArg(req, "catalog")
		if err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request:   &stockReq{ID: id, Catalog: catalog, Company: kit.StringArg(req, "company")},
			EnrichCtx: sessionCtx(id),
		}, nil
	})
}

func registerClassifyObservation(srv *server.MCPServer, ep kit.Endpoint) {
	tool := mcp.NewTool("classify_observation",
		mcp.WithDescription("Classify a single observation text into the configured categories."),
		mcp.WithString("observation", mcp.Required(), mcp.Description("Free-text observation")),
		mcp.WithBoolean("completed", mcp.Description("Whether the audit was completed (default true)")),
	)
	kit.RegisterMCPTool(srv, tool, ep, func(req mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		obs, _ := req.GetArguments()["observation"].(string)
		return &kit.MCPDecodeResult{Request: &classifyReq{
			Observation: obs,
			Completed:   kit.BoolArg(req, "completed", true),
		}}, nil
	})
}

func catalogIDs(store *session.Store) []string {
	cats := store.Rules().Rules.Catalogs
	ids := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return ids
}

func sessionCtx(id string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context { return kit.WithSession(ctx, id) }
}
