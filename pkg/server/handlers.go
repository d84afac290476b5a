package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/ecosight/ecosight/pkg/pipeline"
	"github.com/ecosight/ecosight/pkg/threat"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

type healthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Version     string `json:"version,omitempty"`
	ModelLoaded bool   `json:"model_loaded"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) ready() bool {
	_, err := s.pipeline.Models()
	return err == nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Message:     "EcoSight acoustic threat detection API",
		Version:     s.version,
		ModelLoaded: s.ready(),
		Timestamp:   s.now().Format(threat.TimestampLayout),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "healthy",
		ModelLoaded: s.ready(),
		Timestamp:   s.now().Format(threat.TimestampLayout),
	}
	if !resp.ModelLoaded {
		resp.Status = "unhealthy"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return threat.ValidationError("request", fmt.Errorf("invalid multipart body: %w", err))
	}
	return nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// location reads optional latitude and longitude from the query string or
// form, falling back to the pipeline default.
func (s *Server) location(r *http.Request) (*pipeline.Location, error) {
	loc := s.pipeline.DefaultLocation()
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"latitude", &loc.Latitude},
		{"longitude", &loc.Longitude},
	} {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, threat.ValidationError("request", fmt.Errorf("invalid %s %q", f.name, v))
		}
		*f.dst = x
	}
	if !loc.Valid() {
		return nil, threat.ValidationError("request", fmt.Errorf("invalid location: latitude %v, longitude %v", loc.Latitude, loc.Longitude))
	}
	return &loc, nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if _, err := s.pipeline.Models(); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, err)
		return
	}
	fh := firstFile(r.MultipartForm, "file")
	if fh == nil {
		s.writeDetail(w, http.StatusBadRequest, `missing multipart field "file"`)
		return
	}
	if ct := fh.Header.Get("Content-Type"); !strings.HasPrefix(ct, "audio/") {
		s.writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Invalid file type: %s. Expected audio file.", ct))
		return
	}
	loc, err := s.location(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := readPart(fh)
	if err != nil {
		s.writeError(w, threat.ValidationError("request", err))
		return
	}

	s.logger.Info("processing file", "filename", fh.Filename, "bytes", len(data))
	det, err := s.pipeline.Predict(r.Context(), pipeline.Item{Filename: fh.Filename, Audio: data, Location: loc})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("detection created", "id", det.ID, "class", det.PredictedClass, "priority", det.Priority)
	s.writeJSON(w, http.StatusOK, det)
}

// batchEntry is one element of a batch response: either a prediction or an
// error.
type batchEntry struct {
	Filename       string   `json:"filename"`
	PredictedClass string   `json:"predicted_class,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	Error          string   `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchEntry `json:"results"`
	Total   int          `json:"total"`
}

// batchItems reads every part. Parts that cannot be read get their error in
// resp directly and never reach the pipeline; pos[j] is the position in files
// of items[j].
func batchItems(files []*multipart.FileHeader) (resp batchResponse, items []pipeline.Item, pos []int) {
	resp = batchResponse{Results: make([]batchEntry, len(files)), Total: len(files)}
	items = make([]pipeline.Item, 0, len(files))
	pos = make([]int, 0, len(files))
	for i, fh := range files {
		resp.Results[i].Filename = fh.Filename
		data, err := readPart(fh)
		if err != nil {
			resp.Results[i].Error = fmt.Sprintf("read %s: %v", fh.Filename, err)
			continue
		}
		items = append(items, pipeline.Item{Filename: fh.Filename, Audio: data})
		pos = append(pos, i)
	}
	return resp, items, pos
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if _, err := s.pipeline.Models(); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, err)
		return
	}
	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["files"]
	}
	if len(files) == 0 {
		s.writeDetail(w, http.StatusBadRequest, `missing multipart field "files"`)
		return
	}
	if len(files) > s.cfg.MaxBatchItems {
		s.writeDetail(w, http.StatusBadRequest, fmt.Sprintf("too many files: %d, limit %d", len(files), s.cfg.MaxBatchItems))
		return
	}

	resp, items, pos := batchItems(files)
	for j, res := range s.pipeline.RunBatch(r.Context(), items) {
		e := &resp.Results[pos[j]]
		if res.Err != nil {
			e.Error = detail(res.Err)
			continue
		}
		conf := res.Detection.Confidence
		e.PredictedClass = res.Detection.PredictedClass
		e.Confidence = &conf
		e.Priority = string(res.Detection.Priority)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

type classesResponse struct {
	Version    string            `json:"version"`
	Classes    map[int]string    `json:"classes"`
	Priorities map[string]string `json:"priorities"`
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	labels := s.labels()
	resp := classesResponse{
		Version:    labels.Version,
		Classes:    labels.IndexMap(),
		Priorities: make(map[string]string, labels.Len()),
	}
	for name, p := range labels.PriorityMap() {
		resp.Priorities[name] = string(p)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// labels returns the loaded table, or the built-in one before loading.
func (s *Server) labels() threat.LabelTable {
	if m, err := s.pipeline.Models(); err == nil {
		return m.Labels
	}
	return threat.DefaultLabelTable()
}

type modelInfoResponse struct {
	ModelPath         string         `json:"model_path"`
	ModelType         string         `json:"model_type"`
	ModelName         string         `json:"model_name,omitempty"`
	ModelVersion      string         `json:"model_version,omitempty"`
	InputShape        []int          `json:"input_shape"`
	OutputShape       []int          `json:"output_shape"`
	NumClasses        int            `json:"num_classes"`
	Classes           map[int]string `json:"classes"`
	LabelsVersion     string         `json:"labels_version"`
	SampleRate        int            `json:"sample_rate"`
	MaxDuration       float64        `json:"max_duration"`
	MinSamples        int            `json:"min_samples"`
	FeatureExtraction string         `json:"feature_extraction"`
	TotalParameters   int            `json:"total_parameters"`
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	m, err := s.pipeline.Models()
	if err != nil {
		s.writeError(w, err)
		return
	}
	info := m.Classifier.Describe()
	ncfg := s.pipeline.Normalizer().Config()

	path := s.cfg.ModelPath
	if path == "" {
		path = info.Source
	}
	s.writeJSON(w, http.StatusOK, modelInfoResponse{
		ModelPath:         path,
		ModelType:         info.Type,
		ModelName:         info.Name,
		ModelVersion:      info.Version,
		InputShape:        info.InputShape,
		OutputShape:       info.OutputShape,
		NumClasses:        m.Labels.Len(),
		Classes:           m.Labels.IndexMap(),
		LabelsVersion:     m.Labels.Version,
		SampleRate:        ncfg.SampleRate,
		MaxDuration:       ncfg.MaxDuration.Seconds(),
		MinSamples:        ncfg.MinSamples,
		FeatureExtraction: m.Extraction,
		TotalParameters:   info.Parameters,
	})
}
