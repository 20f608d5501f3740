package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"option-pricer/internal/config"
	perrors "option-pricer/internal/errors"
	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.UI.ColorEnabled = false
	return cfg
}

func execute(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd(cfg, zerolog.Nop())
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

var refArgs = []string{"--spot", "100", "--strike", "110", "--maturity", "1", "--rate", "0.05"}

func withRef(args ...string) []string {
	return append(append(args[:1:1], refArgs...), args[1:]...)
}

func TestBlackScholesCmd_JSON(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, withRef("bs", "--vol", "0.2", "--type", "both", "--json")...)
	if err != nil {
		t.Fatalf("bs: %v\n%s", err, out)
	}

	var resp pricing.BlackScholesResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].OptionType != models.Call || math.Abs(resp.Results[0].Price-6.040) > 1e-3 {
		t.Errorf("call result = %+v", resp.Results[0])
	}
	if resp.Results[1].OptionType != models.Put || resp.Results[1].Delta >= 0 {
		t.Errorf("put result = %+v", resp.Results[1])
	}
}

func TestBlackScholesCmd_Text(t *testing.T) {
	out, err := execute(t, testConfig(t), withRef("bs", "--vol", "0.2")...)
	if err != nil {
		t.Fatalf("bs: %v", err)
	}
	for _, want := range []string{"Black-Scholes", "DELTA", "6.0401", "Put-call parity gap"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBlackScholesCmd_Errors(t *testing.T) {
	cfg := testConfig(t)

	if _, err := execute(t, cfg, withRef("bs")...); err == nil {
		t.Error("expected error without --vol or --history")
	}
	if _, err := execute(t, cfg, withRef("bs", "--vol", "0")...); !errors.Is(err, perrors.ErrDegenerateInput) {
		t.Errorf("zero vol: %v", err)
	}
	if _, err := execute(t, cfg, withRef("bs", "--vol", "0.2", "--type", "straddle")...); !errors.Is(err, perrors.ErrUnsupportedOptionType) {
		t.Errorf("bad type: %v", err)
	}
	if _, err := execute(t, cfg, "bs", "--vol", "0.2"); err == nil {
		t.Error("expected error for missing required flags")
	}
}

func writeHistory(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	data := `Date,Open,High,Low,Close,Volume
2024-01-02,100,101.0,99,100.5,1000
2024-01-03,100,102.5,99,101.0,1000
2024-01-04,100,100.8,99,100.2,1000
2024-01-05,100,103.1,99,102.4,1000
2024-01-08,100,102.2,99,101.9,1000
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBlackScholesCmd_History(t *testing.T) {
	cfg := testConfig(t)
	path := writeHistory(t)

	out, err := execute(t, cfg, withRef("bs", "--history", path, "--json")...)
	if err != nil {
		t.Fatalf("bs --history: %v\n%s", err, out)
	}
	var resp pricing.BlackScholesResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding output: %v", err)
	}

	volOut, err := execute(t, cfg, "vol", "--history", path, "--json")
	if err != nil {
		t.Fatalf("vol: %v", err)
	}
	var vol struct {
		Volatility float64 `json:"volatility"`
		Prices     int     `json:"prices"`
	}
	if err := json.Unmarshal([]byte(volOut), &vol); err != nil {
		t.Fatalf("decoding vol output: %v", err)
	}
	if vol.Prices != 5 || vol.Volatility <= 0 {
		t.Errorf("vol output = %+v", vol)
	}
	if resp.Volatility != vol.Volatility {
		t.Errorf("bs volatility %v != vol %v", resp.Volatility, vol.Volatility)
	}
}

func TestMonteCarloCmd(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, withRef("mc", "--vol", "0.2", "--samples", "50000", "--seed", "42", "--json")...)
	if err != nil {
		t.Fatalf("mc: %v\n%s", err, out)
	}
	var resp pricing.MonteCarloResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if resp.Seed != 42 || resp.Estimate.Samples != 50000 {
		t.Errorf("seed = %d, samples = %d", resp.Seed, resp.Estimate.Samples)
	}
	if math.Abs(resp.Estimate.Price-resp.Analytic) > 4*resp.Estimate.StdError {
		t.Errorf("estimate %.4f vs analytic %.4f (SE %.4f)", resp.Estimate.Price, resp.Analytic, resp.Estimate.StdError)
	}

	again, err := execute(t, cfg, withRef("mc", "--vol", "0.2", "--samples", "50000", "--seed", "42", "--json")...)
	if err != nil {
		t.Fatalf("mc: %v", err)
	}
	if again != out {
		t.Error("same seed produced different output")
	}
}

func TestPathsCmd_WritesCSV(t *testing.T) {
	cfg := testConfig(t)
	outPath := filepath.Join(t.TempDir(), "paths.csv")

	out, err := execute(t, cfg, withRef("paths", "--vol", "0.2", "--trajectories", "3", "--steps", "4", "--seed", "7", "--out", outPath)...)
	if err != nil {
		t.Fatalf("paths: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Paths written to") {
		t.Errorf("output = %s", out)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading %s: %v", outPath, err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want header + 5 steps:\n%s", len(lines), data)
	}
	if lines[0] != "t,path_0,path_1,path_2" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,100,100,100" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestHistoryCmd(t *testing.T) {
	cfg := testConfig(t)

	if _, err := execute(t, cfg, withRef("bs", "--vol", "0.2", "--type", "both")...); err != nil {
		t.Fatalf("bs: %v", err)
	}
	if _, err := execute(t, cfg, withRef("mc", "--vol", "0.2", "--samples", "100", "--seed", "3")...); err != nil {
		t.Fatalf("mc: %v", err)
	}

	out, err := execute(t, cfg, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []models.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(runs) != 3 {
		t.Errorf("len(runs) = %d, want 3", len(runs))
	}

	out, err = execute(t, cfg, "history", "--model", "mc", "--json")
	if err != nil {
		t.Fatalf("history --model mc: %v", err)
	}
	runs = nil
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(runs) != 1 || runs[0].Seed != 3 {
		t.Errorf("mc runs = %+v", runs)
	}

	if _, err := execute(t, cfg, "history", "--model", "binomial"); err == nil {
		t.Error("expected error for unknown model")
	}

	out, err = execute(t, cfg, "history", "prune", "--days", "0", "--json")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	if !strings.Contains(out, `"deleted": 3`) {
		t.Errorf("prune output = %s", out)
	}
}

func TestConfigCmds(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "config", "validate")
	if err != nil || !strings.Contains(out, "Configuration is valid") {
		t.Errorf("config validate: %v\n%s", err, out)
	}

	out, err = execute(t, cfg, "config", "show")
	if err != nil || !strings.Contains(out, "Monte Carlo") {
		t.Errorf("config show: %v\n%s", err, out)
	}

	dir := t.TempDir()
	out, err = execute(t, cfg, "config", "path", "--config", dir)
	if err != nil || strings.TrimSpace(out) != filepath.Join(dir, "config.toml") {
		t.Errorf("config path = %q, %v", out, err)
	}

	bad := testConfig(t)
	bad.MonteCarlo.NumSamples = 0
	if _, err := execute(t, bad, "config", "validate"); err == nil {
		t.Error("expected validation error")
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, testConfig(t), "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if v["version"] != Version {
		t.Errorf("version = %q", v["version"])
	}
}

func TestSimulationCmds_OverflowIsError(t *testing.T) {
	cfg := testConfig(t)
	huge := []string{"--spot", "1e308", "--strike", "1", "--maturity", "1", "--rate", "0", "--vol", "1", "--seed", "9"}

	if _, err := execute(t, cfg, append([]string{"mc", "--samples", "2000"}, huge...)...); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("mc: err = %v, want ErrInvalidInput", err)
	}
	if _, err := execute(t, cfg, append([]string{"paths", "--trajectories", "2000", "--steps", "10"}, huge...)...); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("paths: err = %v, want ErrInvalidInput", err)
	}
}

func TestWritePathsFile(t *testing.T) {
	dir := t.TempDir()
	paths := [][]float64{{100, 101}, {100, 99}}

	path := filepath.Join(dir, "out.csv")
	if err := writePathsFile(path, paths, 1); err != nil {
		t.Fatalf("writePathsFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "t,path_0,path_1\n") {
		t.Errorf("file = %q", data)
	}

	if err := writePathsFile(filepath.Join(dir, "missing", "out.csv"), paths, 1); err == nil {
		t.Error("expected error for missing directory")
	}
	if err := writePathsFile(filepath.Join(dir, "ragged.csv"), [][]float64{{100, 101}, {100}}, 1); !errors.Is(err, perrors.ErrInvalidInput) {
		t.Errorf("ragged paths: %v", err)
	}
}
