package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/toolguard/internal/config"
	"github.com/opencode-ai/toolguard/internal/event"
	"github.com/opencode-ai/toolguard/internal/logging"
	"github.com/opencode-ai/toolguard/internal/permission"
	"github.com/opencode-ai/toolguard/internal/rule"
)

// HookEvent names the lifecycle point an Input was raised at.
type HookEvent string

const (
	EventPreToolUse  HookEvent = "PreToolUse"
	EventPostToolUse HookEvent = "PostToolUse"
)

// ExitPlanModeTool is confirmed by its own flow and never decided here.
const ExitPlanModeTool = "ExitPlanMode"

const (
	defaultNotifyTimeout = 10 * time.Second
	defaultNotifyRetries = 3
)

// Input describes one tool invocation.
type Input struct {
	Event     HookEvent       `json:"hook_event_name" yaml:"hook_event_name"`
	SessionID string          `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	ToolName  string          `json:"tool_name" yaml:"tool_name"`
	ToolInput json.RawMessage `json:"tool_input,omitempty" yaml:"-"`
	ToolUseID string          `json:"tool_use_id,omitempty" yaml:"tool_use_id,omitempty"`
	Cwd       string          `json:"cwd,omitempty" yaml:"cwd,omitempty"`

	// PermissionMode is the mode the transport believes is active. The
	// session's SharedMode decides; this is only logged when it differs.
	PermissionMode string `json:"permission_mode,omitempty" yaml:"permission_mode,omitempty"`
}

// Output is the result of PreToolUse. Decision is empty when the invocation
// was not decided here.
type Output struct {
	Continue  bool                `json:"continue" yaml:"continue"`
	Decision  permission.Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
	Reason    string              `json:"reason,omitempty" yaml:"reason,omitempty"`
	Deferred  bool                `json:"deferred,omitempty" yaml:"deferred,omitempty"`
	CacheKey  string              `json:"cacheKey,omitempty" yaml:"cacheKey,omitempty"`
	Dangerous bool                `json:"dangerous,omitempty" yaml:"dangerous,omitempty"`
}

// CheckResult is the result of Check.
type CheckResult struct {
	Decision permission.Decision `json:"decision" yaml:"decision"`
	Reason   string              `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Options configures an Orchestrator.
type Options struct {
	Settings *config.SharedSettings
	Mode     *permission.SharedMode
	Cache    *Cache
	Notifier Notifier
	PlansDir string
	Bus      *event.Bus

	// Deny notification delivery. NotifyBackOff defaults to an exponential
	// backoff.
	NotifyTimeout time.Duration
	NotifyRetries uint64
	NotifyBackOff func() backoff.BackOff
}

// Orchestrator decides tool invocations. It keeps no per-invocation state
// and is safe for concurrent use.
type Orchestrator struct {
	settings *config.SharedSettings
	mode     *permission.SharedMode
	cache    *Cache
	notifier Notifier
	plansDir string
	bus      *event.Bus

	notifyTimeout time.Duration
	notifyRetries uint64
	notifyBackOff func() backoff.BackOff
	pending       sync.WaitGroup
}

// New creates an Orchestrator. Missing options get working defaults: empty
// settings, default mode, a default cache and the standard plans directory.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		settings:      opts.Settings,
		mode:          opts.Mode,
		cache:         opts.Cache,
		notifier:      opts.Notifier,
		plansDir:      opts.PlansDir,
		bus:           opts.Bus,
		notifyTimeout: opts.NotifyTimeout,
		notifyRetries: opts.NotifyRetries,
		notifyBackOff: opts.NotifyBackOff,
	}
	if o.settings == nil {
		o.settings = config.NewStaticSettings(nil, "", opts.Bus)
	}
	if o.mode == nil {
		o.mode = permission.NewSharedMode(permission.ModeDefault, opts.Bus)
	}
	if o.cache == nil {
		o.cache = NewCache(DefaultCacheSize, DefaultCacheTTL)
	}
	if o.plansDir == "" {
		o.plansDir = config.PlansDir()
	}
	if o.notifyTimeout <= 0 {
		o.notifyTimeout = defaultNotifyTimeout
	}
	if o.notifyRetries == 0 {
		o.notifyRetries = defaultNotifyRetries
	}
	if o.notifyBackOff == nil {
		o.notifyBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	return o
}

// Cache returns the correlation cache.
func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// Mode returns the session mode.
func (o *Orchestrator) Mode() *permission.SharedMode {
	return o.mode
}

// Settings returns the session settings.
func (o *Orchestrator) Settings() *config.SharedSettings {
	return o.settings
}

// PreToolUse decides one invocation. Ask decisions are deferred: the output
// carries the cache key under which the tool call id was stored and no
// decision.
func (o *Orchestrator) PreToolUse(ctx context.Context, in Input) Output {
	if in.Event != EventPreToolUse {
		return Output{Continue: true}
	}

	if rule.StripACPPrefix(in.ToolName) == ExitPlanModeTool {
		log().Debug().Str("tool", in.ToolName).Msg("deferring to plan confirmation")
		return Output{Continue: true, Deferred: true}
	}

	toolInput, err := DecodeToolInput(in.ToolInput)
	if err != nil {
		log().Warn().Err(err).Str("tool", in.ToolName).Msg("malformed tool input, continuing without decision")
		return Output{Continue: true}
	}

	mode := o.mode.Get()
	if in.PermissionMode != "" && in.PermissionMode != string(mode) {
		log().Debug().
			Str("asserted", in.PermissionMode).
			Str("mode", string(mode)).
			Msg("ignoring transport permission mode")
	}

	policy := permission.Evaluate(mode, in.ToolName, toolInput, o.plansDir)
	if policy.Dangerous {
		o.reportDangerous(in, toolInput, policy.DangerReason)
	}
	switch policy.Action {
	case permission.PolicyAllow:
		return Output{Continue: true, Decision: permission.DecisionAllow, Reason: policy.Reason}
	case permission.PolicyDeny:
		return Output{Continue: true, Decision: permission.DecisionDeny, Reason: policy.Reason}
	}

	res := o.settings.Check(in.ToolName, toolInput)

	log().Debug().
		Str("tool", in.ToolName).
		Str("mode", string(mode)).
		Str("decision", string(res.Decision)).
		Str("rule", res.Rule).
		Msg("pre tool use")

	switch res.Decision {
	case permission.DecisionAllow:
		return Output{
			Continue:  true,
			Decision:  permission.DecisionAllow,
			Reason:    ruleReason("Allowed", res.Rule),
			Dangerous: policy.Dangerous,
		}

	case permission.DecisionDeny:
		reason := ruleReason("Denied", res.Rule)
		o.notifyDenied(ctx, in, res.Rule, reason)
		return Output{
			Continue:  true,
			Decision:  permission.DecisionDeny,
			Reason:    reason,
			Dangerous: policy.Dangerous,
		}
	}

	return o.deferDecision(in, toolInput, res, policy.Dangerous)
}

func (o *Orchestrator) deferDecision(in Input, toolInput map[string]any, res permission.Result, dangerous bool) Output {
	key, err := StableKey(toolInput)
	if err != nil {
		log().Warn().Err(err).Str("tool", in.ToolName).Msg("cannot key tool input")
		return Output{Continue: true, Dangerous: dangerous}
	}

	if in.ToolUseID != "" {
		o.cache.CacheToolUseID(key, in.ToolUseID)
	}

	if o.bus != nil {
		o.bus.Publish(event.Event{
			Type: event.PermissionDeferred,
			Data: event.PermissionDeferredData{
				SessionID: in.SessionID,
				ToolName:  in.ToolName,
				ToolUseID: in.ToolUseID,
				CacheKey:  key,
				Rule:      res.Rule,
			},
		})
	}

	return Output{Continue: true, Deferred: true, CacheKey: key, Dangerous: dangerous}
}

// Check returns the decision for an invocation without deferring, caching
// or notifying.
func (o *Orchestrator) Check(toolName string, toolInput map[string]any) CheckResult {
	if toolInput == nil {
		toolInput = map[string]any{}
	}

	policy := permission.Evaluate(o.mode.Get(), toolName, toolInput, o.plansDir)
	switch policy.Action {
	case permission.PolicyAllow:
		return CheckResult{Decision: permission.DecisionAllow, Reason: policy.Reason}
	case permission.PolicyDeny:
		return CheckResult{Decision: permission.DecisionDeny, Reason: policy.Reason}
	}

	res := o.settings.Check(toolName, toolInput)
	switch res.Decision {
	case permission.DecisionAllow:
		return CheckResult{Decision: res.Decision, Reason: ruleReason("Allowed", res.Rule)}
	case permission.DecisionDeny:
		return CheckResult{Decision: res.Decision, Reason: ruleReason("Denied", res.Rule)}
	}
	return CheckResult{Decision: permission.DecisionAsk}
}

// Wait blocks until in-flight deny notifications have finished.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

func (o *Orchestrator) notifyDenied(ctx context.Context, in Input, matched, reason string) {
	if o.notifier == nil {
		return
	}
	if in.ToolUseID == "" {
		log().Debug().Str("tool", in.ToolName).Msg("no tool use id, skipping deny notification")
		return
	}

	data := event.ToolCallFailedData{
		SessionID: in.SessionID,
		ToolUseID: in.ToolUseID,
		ToolName:  in.ToolName,
		Title:     in.ToolName,
		Reason:    reason,
		RawOutput: map[string]any{
			"decision": string(permission.DecisionDeny),
			"rule":     matched,
			"reason":   reason,
		},
	}

	o.pending.Add(1)
	go func() {
		defer o.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.notifyTimeout)
		defer cancel()

		policy := backoff.WithContext(
			backoff.WithMaxRetries(o.notifyBackOff(), o.notifyRetries),
			ctx,
		)
		err := backoff.Retry(func() error {
			return o.notifier.ToolCallFailed(ctx, data)
		}, policy)
		if err != nil {
			log().Warn().
				Err(err).
				Str("tool", in.ToolName).
				Str("toolUseID", in.ToolUseID).
				Msg("failed to deliver deny notification")
		}
	}()
}

func (o *Orchestrator) reportDangerous(in Input, toolInput map[string]any, reason string) {
	command, _ := toolInput["command"].(string)
	log().Warn().
		Str("tool", in.ToolName).
		Str("command", command).
		Str("reason", reason).
		Msg("possibly dangerous command")

	if o.bus != nil {
		o.bus.Publish(event.Event{
			Type: event.DangerousCommand,
			Data: event.DangerousCommandData{
				SessionID: in.SessionID,
				Command:   command,
				Reason:    reason,
			},
		})
	}
}

func ruleReason(verb, matched string) string {
	if matched == "" {
		matched = "(implicit)"
	}
	return fmt.Sprintf("%s by settings rule: %s", verb, matched)
}

var errNotObject = errors.New("tool input is not a JSON object")

// DecodeToolInput decodes a tool input object, keeping numbers as written.
// Empty input and null decode to an empty map.
func DecodeToolInput(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	if trimmed[0] != '{' {
		return nil, errNotObject
	}

	var input map[string]any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("decode tool input: %w", err)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}
	return input, nil
}

var errTrailingData = errors.New("unexpected data after tool input")

func ensureEOF(dec *json.Decoder) error {
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

func log() *zerolog.Logger {
	return logging.Component("hook")
}
