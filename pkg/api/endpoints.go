package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/keyword"
	"github.com/hazyhaar/auditlens/pkg/kit"
	"github.com/hazyhaar/auditlens/pkg/report"
	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/hazyhaar/auditlens/pkg/stock"
	"github.com/hazyhaar/auditlens/pkg/workbook"
)

// Shared request/response types used by both HTTP and MCP transports.

type loadReq struct {
	Identity session.Identity
	Body     io.Reader
}

type replaceReq struct {
	ID       string
	Identity session.Identity
	Body     io.Reader
}

type loadFileReq struct {
	Path string
}

type sessionResponse struct {
	ID        string           `json:"id"`
	Identity  session.Identity `json:"identity"`
	RunID     string           `json:"run_id"`
	Records   int              `json:"records"`
	Sheets    []string         `json:"sheets"`
	Warnings  []string         `json:"warnings,omitempty"`
	Reloaded  bool             `json:"reloaded"`
	LoadedAt  string           `json:"loaded_at"`
	Completed int              `json:"completed"`
}

type reportReq struct {
	ID   string
	Opts report.Options
}

type kpisReq struct {
	ID    string
	Field audit.Field
}

type stockReq struct {
	ID      string
	Catalog string
	Company string
}

type stockResponse struct {
	Catalog   rules.Catalog        `json:"catalog"`
	Entries   []stock.Entry        `json:"entries"`
	ByCompany []stock.CompanyCount `json:"by_company"`
	Companies []string             `json:"companies"`
	Absent    []string             `json:"absent,omitempty"`
}

type exportResponse struct {
	FileName string
	Data     []byte
}

type recordsReq struct {
	ID     string
	Filter report.Filter
	Limit  int
}

type recordView struct {
	Sheet       string         `json:"sheet"`
	Index       int            `json:"index"`
	Technician  string         `json:"technician"`
	Auditor     string         `json:"auditor"`
	Company     string         `json:"company"`
	Region      string         `json:"region"`
	Status      string         `json:"status"`
	Date        string         `json:"date,omitempty"`
	WorkOrder   string         `json:"work_order,omitempty"`
	Plate       string         `json:"plate,omitempty"`
	AuditType   string         `json:"audit_type,omitempty"`
	Mileage     *float64       `json:"mileage,omitempty"`
	Observation string         `json:"observation,omitempty"`
	Categories  []string       `json:"categories"`
	Evidence    audit.Evidence `json:"evidence,omitempty"`
}

type recordsResponse struct {
	Total   int          `json:"total"`
	Records []recordView `json:"records"`
}

type classifyReq struct {
	Observation string
	Completed   bool
}

type classifyResponse struct {
	Observation string         `json:"observation"`
	Normalized  string         `json:"normalized"`
	Categories  []string       `json:"categories"`
	Evidence    audit.Evidence `json:"evidence"`
}

type categoryInfo struct {
	ID            string       `json:"id"`
	Label         string       `json:"label"`
	Source        rules.Source `json:"source"`
	CompletedOnly bool         `json:"completed_only"`
	Keywords      []string     `json:"keywords,omitempty"`
}

type categoriesResponse struct {
	EmptyObservation rules.EmptyPolicy `json:"empty_observation"`
	Categories       []categoryInfo    `json:"categories"`
	Catalogs         []rules.Catalog   `json:"catalogs"`
}

// maxRecords bounds one records page.
const maxRecords = 1000

func sessionView(s *session.Session, reloaded bool) sessionResponse {
	resp := sessionResponse{
		ID:       s.ID,
		Identity: s.Identity,
		RunID:    s.RunID,
		Records:  len(s.Dataset.Records),
		Sheets:   s.Dataset.Sheets,
		Reloaded: reloaded,
		LoadedAt: s.LoadedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	for _, r := range s.Dataset.Records {
		if r.Completed() {
			resp.Completed++
		}
	}
	for _, w := range s.Dataset.Warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	return resp
}

func loadEndpoint(store *session.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*loadReq)
		s, err := store.Create(ctx, req.Identity, req.Body)
		if err != nil {
			return nil, badRequest(err)
		}
		return sessionView(s, true), nil
	}
}

func loadFileEndpoint(store *session.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*loadFileReq)
		id, err := session.IdentityOf(req.Path)
		if err != nil {
			return nil, badRequest(err)
		}
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, badRequest(err)
		}
		s, err := store.Create(ctx, id, bytes.NewReader(data))
		if err != nil {
			return nil, badRequest(err)
		}
		return sessionView(s, true), nil
	}
}

func replaceEndpoint(store *session.Store) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*replaceReq)
		s, reloaded, err := store.Replace(ctx, req.ID, req.Identity, req.Body)
		if errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, badRequest(err)
		}
		return sessionView(s, reloaded), nil
	}
}

func listEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		sessions := store.List()
		out := make([]sessionResponse, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, sessionView(s, false))
		}
		return out, nil
	}
}

func reportEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*reportReq)
		s, err := store.Get(req.ID)
		if err != nil {
			return nil, err
		}
		return report.Build(s.Dataset, store.Classifier(), req.Opts), nil
	}
}

func kpisEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*kpisReq)
		s, err := store.Get(req.ID)
		if err != nil {
			return nil, err
		}
		return report.GroupBy(s.Dataset, s.Classifications, req.Field), nil
	}
}

func selectStock(store *session.Store, req *stockReq) (*stock.Result, error) {
	s, err := store.Get(req.ID)
	if err != nil {
		return nil, err
	}
	cat, ok := store.Rules().Rules.Catalog(req.Catalog)
	if !ok {
		return nil, badRequest(fmt.Errorf("unknown catalog %q", req.Catalog))
	}
	return stock.Select(s.Dataset, cat)
}

func stockEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*stockReq)
		res, err := selectStock(store, req)
		if err != nil {
			return nil, err
		}
		return stockResponse{
			Catalog:   res.Catalog,
			Entries:   res.FilterCompany(req.Company),
			ByCompany: res.ByCompany(),
			Companies: res.Companies(),
			Absent:    res.Absent,
		}, nil
	}
}

func exportEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*stockReq)
		res, err := selectStock(store, req)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := workbook.Write(&buf, res.Sheet(res.FilterCompany(req.Company))); err != nil {
			return nil, err
		}
		name := res.Catalog.Sheet
		if company := fileNamePart(req.Company); company != "" {
			name += "_" + company
		}
		return exportResponse{FileName: name + ".xlsx", Data: buf.Bytes()}, nil
	}
}

// fileNamePart replaces path separators and other characters unsafe in a
// download name with "_".
func fileNamePart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}

func recordsEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*recordsReq)
		s, err := store.Get(req.ID)
		if err != nil {
			return nil, err
		}
		limit := req.Limit
		if limit <= 0 || limit > maxRecords {
			limit = maxRecords
		}
		order := store.Rules().CategoryIDs()
		recs := req.Filter.Apply(s.Dataset.Records)
		resp := recordsResponse{Total: len(recs), Records: make([]recordView, 0, min(limit, len(recs)))}
		cl := store.Classifier()
		for i := range recs {
			if i == limit {
				break
			}
			r := &recs[i]
			resp.Records = append(resp.Records, recordView{
				Sheet:       r.Sheet,
				Index:       r.Index,
				Technician:  r.Technician,
				Auditor:     r.Auditor,
				Company:     r.Company,
				Region:      r.Region,
				Status:      r.Status,
				Date:        r.Value(audit.FieldDate),
				WorkOrder:   r.WorkOrder,
				Plate:       r.Plate,
				AuditType:   r.AuditType,
				Mileage:     r.Mileage,
				Observation: r.Observation,
				Categories:  s.Classifications[r.Index].Matched(order),
				Evidence:    cl.Explain(r),
			})
		}
		return resp, nil
	}
}

func classifyEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*classifyReq)
		cl := store.Classifier()
		return classifyResponse{
			Observation: req.Observation,
			Normalized:  keyword.NormalizeString(req.Observation),
			Categories:  cl.ClassifyText(req.Observation, req.Completed).Matched(store.Rules().CategoryIDs()),
			Evidence:    cl.ExplainText(req.Observation, req.Completed),
		}, nil
	}
}

func categoriesEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		r := store.Rules().Rules
		resp := categoriesResponse{EmptyObservation: r.EmptyObservation, Catalogs: r.Catalogs}
		for _, c := range r.Categories {
			resp.Categories = append(resp.Categories, categoryInfo{
				ID:            c.ID,
				Label:         c.Label,
				Source:        c.Source,
				CompletedOnly: c.CompletedOnly,
				Keywords:      c.Keywords,
			})
		}
		return resp, nil
	}
}

func deleteEndpoint(store *session.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		id := request.(string)
		if err := store.Delete(id); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": id}, nil
	}
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", kit.ErrBadRequest, err)
}
