package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/vox/storer"
	getsafe "github.com/w-h-a/vox/util/get_safe"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	scrollPage = 256

	// extra points fetched past k so ties at the cut can be reordered
	searchSlack = 16
)

type qdrantStorer struct {
	options   storer.Options
	client    *http.Client
	dimension int
	// created reports whether the collection exists. It is created on the
	// first write when no dimension was configured.
	created bool
	lastSeq int64
	mtx     sync.RWMutex
}

func (s *qdrantStorer) Exists(ctx context.Context, id string) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if !s.created {
		return false, nil
	}

	_, found, err := s.get(ctx, id)

	return found, err
}

func (s *qdrantStorer) Add(ctx context.Context, rec storer.Record) error {
	return s.replace(ctx, rec)
}

func (s *qdrantStorer) Update(ctx context.Context, rec storer.Record) error {
	return s.replace(ctx, rec)
}

// replace is a single point upsert, which qdrant applies atomically.
func (s *qdrantStorer) replace(ctx context.Context, rec storer.Record) error {
	rec, err := storer.Prepare(rec)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err := storer.CheckDimension(s.dimension, rec.Embedding); err != nil {
		return err
	}

	if !s.created {
		if err := s.createCollection(ctx, len(rec.Embedding)); err != nil {
			return err
		}
		s.created = true
		s.dimension = len(rec.Embedding)
	}

	existing, found, err := s.get(ctx, rec.Id)
	if err != nil {
		return err
	}

	seq := s.nextSeq()
	if found {
		rec.CreatedAt = toRecord(existing).CreatedAt
		seq = getsafe.Int64(existing.Payload, "seq")
	}

	point := map[string]any{
		"id":     pointId(rec.Id),
		"vector": rec.Embedding,
		"payload": map[string]any{
			"command_id":  rec.Id,
			"description": rec.Description,
			"payload":     rec.Payload,
			"category":    rec.Category,
			"created_at":  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			"seq":         seq,
		},
	}

	req := map[string]any{
		"points": []map[string]any{point},
	}

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodPut, s.path("/points?wait=true"), req, &rsp); err != nil {
		return fmt.Errorf("upsert command %s: %w", rec.Id, err)
	}

	return s.check(rsp.Status)
}

func (s *qdrantStorer) Delete(ctx context.Context, id string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.created {
		return false, nil
	}

	_, found, err := s.get(ctx, id)
	if err != nil || !found {
		return false, err
	}

	req := map[string]any{
		"points": []string{pointId(id)},
	}

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodPost, s.path("/points/delete?wait=true"), req, &rsp); err != nil {
		return false, fmt.Errorf("delete command %s: %w", id, err)
	}

	if err := s.check(rsp.Status); err != nil {
		return false, err
	}

	return true, nil
}

func (s *qdrantStorer) Search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]storer.Match, error) {
	if k < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if err := storer.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}

	if !s.created {
		return nil, nil
	}

	points, err := s.search(ctx, vector, k, minSimilarity)
	if err != nil {
		return nil, err
	}

	if len(points) > k {
		points = points[:k]
	}

	matches := make([]storer.Match, 0, len(points))

	for _, point := range points {
		if point.Score < minSimilarity {
			continue
		}
		matches = append(matches, toRecord(point).Match(point.Score))
	}

	return matches, nil
}

// search returns at least the k best points, ordered by score then
// insertion. qdrant does not promise an order among equal scores, so the
// limit grows until no tie with the k-th point can have been cut off.
func (s *qdrantStorer) search(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]qdrantPoint, error) {
	limit := k + searchSlack

	for {
		req := map[string]any{
			"vector":          vector,
			"limit":           limit,
			"score_threshold": minSimilarity,
			"with_payload":    true,
		}

		var rsp qdrantEnvelope[[]qdrantPoint]

		if err := s.do(ctx, http.MethodPost, s.path("/points/search"), req, &rsp); err != nil {
			return nil, err
		}

		points := rsp.Result

		sort.SliceStable(points, func(i, j int) bool {
			if points[i].Score != points[j].Score {
				return points[i].Score > points[j].Score
			}
			return getsafe.Int64(points[i].Payload, "seq") < getsafe.Int64(points[j].Payload, "seq")
		})

		if len(points) < limit || points[len(points)-1].Score != points[k-1].Score {
			return points, nil
		}

		limit *= 2
	}
}

func (s *qdrantStorer) All(ctx context.Context) ([]storer.Record, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.scroll(ctx)
}

func (s *qdrantStorer) Stats(ctx context.Context) (storer.Stats, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	records, err := s.scroll(ctx)
	if err != nil {
		return storer.Stats{}, err
	}

	return storer.Stats{
		Total:      len(records),
		Categories: storer.CountCategories(records),
		Location:   fmt.Sprintf("%s/collections/%s", strings.TrimRight(s.options.Location, "/"), s.options.Collection),
		Dimension:  s.dimension,
	}, nil
}

// Reset drops and recreates the collection under the write lock.
func (s *qdrantStorer) Reset(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.created {
		var rsp qdrantEnvelope[json.RawMessage]
		if err := s.do(ctx, http.MethodDelete, s.path(""), nil, &rsp); err != nil {
			return fmt.Errorf("reset commands: %w", err)
		}
		s.created = false
	}

	s.dimension = s.options.Dimension

	if s.dimension > 0 {
		if err := s.createCollection(ctx, s.dimension); err != nil {
			return err
		}
		s.created = true
	}

	return nil
}

func (s *qdrantStorer) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *qdrantStorer) get(ctx context.Context, id string) (qdrantPoint, bool, error) {
	var rsp qdrantEnvelope[qdrantPoint]

	err := s.do(ctx, http.MethodGet, s.path("/points/"+url.PathEscape(pointId(id))), nil, &rsp)

	var herr *httpError
	if errors.As(err, &herr) && herr.code == http.StatusNotFound {
		return qdrantPoint{}, false, nil
	}
	if err != nil {
		return qdrantPoint{}, false, err
	}

	return rsp.Result, true, nil
}

func (s *qdrantStorer) scroll(ctx context.Context) ([]storer.Record, error) {
	if !s.created {
		return nil, nil
	}

	var points []qdrantPoint
	var offset any

	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			req["offset"] = offset
		}

		var rsp qdrantEnvelope[qdrantScroll]

		if err := s.do(ctx, http.MethodPost, s.path("/points/scroll"), req, &rsp); err != nil {
			return nil, err
		}

		points = append(points, rsp.Result.Points...)

		if rsp.Result.NextPageOffset == nil {
			break
		}
		offset = rsp.Result.NextPageOffset
	}

	sort.SliceStable(points, func(i, j int) bool {
		return getsafe.Int64(points[i].Payload, "seq") < getsafe.Int64(points[j].Payload, "seq")
	})

	records := make([]storer.Record, 0, len(points))
	for _, point := range points {
		records = append(records, toRecord(point))
	}

	return records, nil
}

func (s *qdrantStorer) do(ctx context.Context, method string, path string, body any, rsp any) error {
	u := strings.TrimRight(s.options.Location, "/") + path

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if apiKey, ok := ApiKeyFrom(s.options.Context); ok {
		request.Header.Set("api-key", apiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return &httpError{code: response.StatusCode, body: string(payload)}
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

func (s *qdrantStorer) check(status qdrantStatus) error {
	if !strings.EqualFold(status.State, "ok") && len(status.Error) > 0 {
		return errors.New(status.Error)
	}
	return nil
}

func (s *qdrantStorer) path(suffix string) string {
	return fmt.Sprintf("/collections/%s%s", url.PathEscape(s.options.Collection), suffix)
}

func (s *qdrantStorer) configure(ctx context.Context) error {
	var rsp qdrantEnvelope[qdrantCollection]

	err := s.do(ctx, http.MethodGet, s.path(""), nil, &rsp)

	var herr *httpError
	if errors.As(err, &herr) && herr.code == http.StatusNotFound {
		if s.dimension == 0 {
			return nil
		}
		if err := s.createCollection(ctx, s.dimension); err != nil {
			return err
		}
		s.created = true
		return nil
	}
	if err != nil {
		return err
	}

	size := rsp.Result.Config.Params.Vectors.Size
	if s.dimension != 0 && size != s.dimension {
		return fmt.Errorf("collection holds %d-dimensional vectors, configured for %d: %w", size, s.dimension, storer.ErrDimensionMismatch)
	}

	s.dimension = size
	s.created = true

	return nil
}

func (s *qdrantStorer) createCollection(ctx context.Context, size int) error {
	req := map[string]any{
		"vectors": map[string]any{
			"size":     size,
			"distance": "Cosine",
		},
	}

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(ctx, http.MethodPut, s.path(""), req, &rsp); err != nil {
		return fmt.Errorf("create collection %s: %w", s.options.Collection, err)
	}

	if !strings.EqualFold(rsp.Status.State, "ok") {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

// nextSeq orders inserts. It follows the clock so that order survives
// restarts, and never repeats within a process. Microseconds keep the value
// exact once it has round-tripped through a JSON number.
func (s *qdrantStorer) nextSeq() int64 {
	seq := time.Now().UnixMicro()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

// pointId maps a command id to the UUID qdrant requires for point ids.
func pointId(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("vox:command:"+id)).String()
}

func toRecord(point qdrantPoint) storer.Record {
	createdAt, _ := time.Parse(time.RFC3339Nano, getsafe.String(point.Payload, "created_at"))

	return storer.Record{
		Id:          getsafe.String(point.Payload, "command_id"),
		Description: getsafe.String(point.Payload, "description"),
		Payload:     getsafe.String(point.Payload, "payload"),
		Category:    getsafe.String(point.Payload, "category"),
		Embedding:   point.Vector,
		CreatedAt:   createdAt,
	}
}

func NewStorer(opts ...storer.Option) storer.Storer {
	options := storer.NewOptions(opts...)

	if len(options.Location) == 0 || len(options.Collection) == 0 {
		panic("missing location or collection for qdrant storer")
	}

	s := &qdrantStorer{
		options:   options,
		dimension: options.Dimension,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	if err := s.configure(options.Context); err != nil {
		detail := "failed to configure qdrant storer"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	return s
}
