package decision_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/toolguard/internal/logging"
)

func TestDecision(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Decision Suite")
}

var _ = BeforeSuite(func() {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ErrorLevel
	cfg.Output = GinkgoWriter
	logging.Init(cfg)
})
