package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecosight/ecosight/pkg/audio/codec/wav"
	"github.com/ecosight/ecosight/pkg/audio/normalize"
	"github.com/ecosight/ecosight/pkg/classifier"
	"github.com/ecosight/ecosight/pkg/embedding"
	"github.com/ecosight/ecosight/pkg/pipeline"
	"github.com/ecosight/ecosight/pkg/server"
	"github.com/ecosight/ecosight/pkg/threat"
)

// apiServer runs the real HTTP API over a fake embedder and an identity head.
func apiServer(t *testing.T, loaded bool) *httptest.Server {
	t.Helper()
	var src pipeline.ModelSource
	if loaded {
		wf, err := classifier.DecodeWeights("head.yaml", []byte(identityWeights))
		if err != nil {
			t.Fatal(err)
		}
		head, err := classifier.NewDense(wf, "head.yaml")
		if err != nil {
			t.Fatal(err)
		}
		x := embedding.NewRemote(fakeEmbedder(t).URL, embedding.WithDimension(4))
		m, err := pipeline.NewModels(x, head, threat.DefaultLabelTable())
		if err != nil {
			t.Fatal(err)
		}
		src = pipeline.NewLoaded(m)
	} else {
		src = pipeline.NewLoader(func(context.Context) (*pipeline.Models, error) {
			return nil, errors.New("extractor unreachable")
		})
	}

	norm, err := normalize.New(normalize.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := pipeline.New(norm, src, pipeline.WithLogger(quiet))
	ts := httptest.NewServer(server.New(server.DefaultConfig(), p, server.WithLogger(quiet)).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestProbeTone(t *testing.T) {
	data, err := probeTone()
	if err != nil {
		t.Fatal(err)
	}
	buf, err := wav.Decode(data, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.SampleRate != probeRate || buf.Channels != 1 || len(buf.Samples) != probeRate*probeSeconds {
		t.Fatalf("tone = %d Hz, %d ch, %d samples", buf.SampleRate, buf.Channels, len(buf.Samples))
	}
	var peak float64
	for _, s := range buf.Samples {
		peak = max(peak, s)
	}
	if peak < 0.49 || peak > 0.51 {
		t.Errorf("peak = %v, want ~0.5", peak)
	}
}

func TestProbe(t *testing.T) {
	setupTestEnv(t)
	ts := apiServer(t, true)

	stdout, stderr, code := runCmd(t, "probe", "--url", ts.URL+"/", "-o", "json")
	if code != 0 {
		t.Fatalf("exit %d: %s\n%s", code, stderr, stdout)
	}
	var checks []probeCheck
	if err := json.Unmarshal([]byte(stdout), &checks); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(checks) != 5 {
		t.Fatalf("checks = %d, want 5", len(checks))
	}
	for _, c := range checks {
		if !c.OK || c.Status != 200 {
			t.Errorf("%s: %+v", c.Endpoint, c)
		}
	}
	if !strings.Contains(checks[3].Detail, "gun_shot") {
		t.Errorf("predict detail = %q", checks[3].Detail)
	}
	if !strings.Contains(stderr, "all 5 checks passed") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestProbe_ModelsNotLoaded(t *testing.T) {
	setupTestEnv(t)
	ts := apiServer(t, false)

	stdout, stderr, code := runCmd(t, "probe", "--url", ts.URL, "-o", "json")
	if code == 0 {
		t.Fatal("probe should fail while models are not loaded")
	}
	if !strings.Contains(stderr, "4 of 5 checks failed") {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(stderr, "✗") || !strings.Contains(stderr, "Model not loaded") {
		t.Errorf("stderr = %q, want each failed check listed", stderr)
	}
	var checks []probeCheck
	if err := json.Unmarshal([]byte(stdout), &checks); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	// /classes serves the built-in table before models load.
	if !checks[1].OK {
		t.Errorf("classes check = %+v", checks[1])
	}
	if checks[3].Status != 503 || !strings.Contains(checks[3].Detail, "Model not loaded") {
		t.Errorf("predict check = %+v", checks[3])
	}
}

func TestProbe_Unreachable(t *testing.T) {
	setupTestEnv(t)
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	if _, _, code := runCmd(t, "probe", "--url", url, "--timeout", "2s"); code == 0 {
		t.Error("probe against a closed server should fail")
	}
}
