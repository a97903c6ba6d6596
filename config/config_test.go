package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	goutils "go.viam.com/utils"

	"go.viam.com/framepipe/logging"
)

type detectorConfig struct {
	Thresh []int     `json:"thresh"`
	Erode  int       `json:"erode"`
	Area   []float64 `json:"area"`
	Sink   string    `json:"sink"`
}

func (cfg *detectorConfig) Validate(path string) error {
	if cfg.Sink == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "sink")
	}
	if len(cfg.Thresh) != 2 {
		return goutils.NewConfigValidationError(path, errors.New("thresh must be [min,max]"))
	}
	return nil
}

const testConfig = `
scalar = 4

[led]
thresh = [10, 200]
erode = 3
area = [5, 1e4]
sink = "${FRAMEPIPE_TEST_SINK}"

[bad]
thresh = [1]
sink = "pos"

[typo]
sink = "pos"
thresh = [1, 2]
eroed = 3
`

func TestRead(t *testing.T) {
	logger := logging.NewTestLogger(t)
	t.Setenv("FRAMEPIPE_TEST_SINK", "pos0")
	path := filepath.Join(t.TempDir(), "detect.toml")
	test.That(t, os.WriteFile(path, []byte(testConfig), 0o600), test.ShouldBeNil)

	var cfg detectorConfig
	test.That(t, Read(context.Background(), path, "led", &cfg, logger), test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, detectorConfig{
		Thresh: []int{10, 200},
		Erode:  3,
		Area:   []float64{5, 1e4},
		Sink:   "pos0",
	})

	err := Read(context.Background(), path, "bad", &detectorConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "thresh must be")

	err = Read(context.Background(), path, "typo", &detectorConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "eroed")

	err = Read(context.Background(), path, "missing", &detectorConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no table "missing"`)

	err = Read(context.Background(), path, "scalar", &detectorConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "is not a table")

	err = Read(context.Background(), filepath.Join(t.TempDir(), "nope.toml"), "led", &detectorConfig{}, logger)
	test.That(t, os.IsNotExist(errors.Cause(err)), test.ShouldBeTrue)
}

func TestFromReaderErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	err := FromReader(context.Background(), "inline", strings.NewReader("[led\n"), "led", &detectorConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "TOML")

	err = FromReader(context.Background(), "inline", strings.NewReader("[led]\nthresh = [1, 2]\n"), "led", &detectorConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"sink" is required`)
}

func TestParsePairs(t *testing.T) {
	ints, err := ParseIntPair("10, 256")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ints, test.ShouldResemble, [2]int{10, 256})
	_, err = ParseIntPair("10")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ParseIntPair("a,b")
	test.That(t, err, test.ShouldNotBeNil)

	floats, err := ParseFloatPair("0.5,1e3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, floats, test.ShouldResemble, [2]float64{0.5, 1000})
	_, err = ParseFloatPair("1,2,3")
	test.That(t, err, test.ShouldNotBeNil)
}
