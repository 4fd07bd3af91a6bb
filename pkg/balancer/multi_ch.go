package balancer

import (
	"fmt"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/lintas-routing/balancegraph/pkg/config"
	"github.com/lintas-routing/balancegraph/pkg/util"
)

// MultiChConstructor wraps the external contraction binary. It receives the
// updated graph as an fmi file and writes the contracted graph (levels plus
// shortcut children) to another fmi file.
type MultiChConstructor struct {
	binary           string
	contractionRatio float64
	numThreads       int
	logger           *zap.Logger
}

func NewMultiChConstructor(cfg config.MultiChConstructor, logger *zap.Logger) *MultiChConstructor {
	ratio := cfg.ContractionRatio
	if ratio <= 0 {
		ratio = 99.85
	}
	threads := cfg.NumThreads
	if threads <= 0 {
		threads = 1
	}
	return &MultiChConstructor{
		binary:           cfg.Binary,
		contractionRatio: ratio,
		numThreads:       threads,
		logger:           logger,
	}
}

// Contract runs the constructor and blocks until it exits. A non-zero exit
// aborts the balancing run; later rounds on stale contractions would be
// wrong.
func (m *MultiChConstructor) Contract(inputFmi, outputFmi string) error {
	args := []string{
		"--text", inputFmi,
		"--output", outputFmi,
		"--percent", fmt.Sprintf("%.4f", m.contractionRatio),
		"--threads", strconv.Itoa(m.numThreads),
		"--write-ids",
	}
	m.logger.Sugar().Infof("running %s %v", m.binary, args)

	cmd := exec.Command(m.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		m.logger.Sugar().Errorf("ch constructor output:\n%s", string(out))
		return util.WrapErrorf(err, util.ErrExternalTool,
			"%s exited with code %d", m.binary, exitCode)
	}
	return nil
}
