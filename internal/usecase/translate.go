package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"translator-bot/internal/domain"
)

const (
	DefaultMention         = "@翻译机器人"
	DefaultModel           = "deepseek-chat"
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxInflight     = 8
	DefaultCacheTTL        = time.Hour

	replyEmpty       = "请输入需要翻译的文本"
	replyRateLimited = "请求过于频繁，请稍后再试"
	replyFailedFmt   = "翻译失败: %s"
)

type Outcome string

const (
	OutcomeTranslated     Outcome = "translated"
	OutcomeCacheHit       Outcome = "cache_hit"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeEmpty          Outcome = "empty"
	OutcomeProviderFailed Outcome = "provider_failed"
)

type Deduplicator interface {
	Seen(id string) bool
}

// MessageClaimer dedups across processes that do not share memory.
type MessageClaimer interface {
	ClaimMessage(ctx context.Context, messageID string) (bool, error)
}

type Admitter interface {
	Admit(ctx context.Context, senderID string) (bool, error)
}

type LanguageDetector interface {
	Detect(text string) domain.Language
}

type TranslationCache interface {
	Lookup(text string, sourceLang domain.Language) (string, bool)
	Store(text string, sourceLang domain.Language, translated string, ttl time.Duration)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, params domain.ModelParams) (string, error)
}

type Replier interface {
	Reply(ctx context.Context, msg domain.Message, text string) error
}

type TranslationRecorder interface {
	RecordTranslation(ctx context.Context, rec domain.TranslationRecord) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Deps are the collaborators of TranslateService. Claims and Recorder are
// optional.
type Deps struct {
	Dedup    Deduplicator
	Claims   MessageClaimer
	Limiter  Admitter
	Detector LanguageDetector
	Cache    TranslationCache
	LLM      LLMClient
	Replier  Replier
	Recorder TranslationRecorder
	Logger   *slog.Logger
}

// Config tunes TranslateService. Zero values fall back to the defaults above.
type Config struct {
	Model           string
	Mention         string
	CacheTTL        time.Duration
	ProviderTimeout time.Duration
	MaxInflight     int64
}

// Result describes what happened to one inbound message.
type Result struct {
	Outcome    Outcome
	Ack        domain.Ack
	Status     string
	Reply      string
	SourceLang domain.Language
	TargetLang domain.Language
	FromCache  bool
	Delivered  bool
	Err        *Error
}

// TranslateService runs the per-message pipeline: dedup, rate limit,
// language detection, cache, provider, reply.
type TranslateService struct {
	dedup    Deduplicator
	claims   MessageClaimer
	limiter  Admitter
	detector LanguageDetector
	cache    TranslationCache
	llm      LLMClient
	replier  Replier
	recorder TranslationRecorder
	logger   *slog.Logger

	model           string
	mention         string
	cacheTTL        time.Duration
	providerTimeout time.Duration
	inflight        *semaphore.Weighted
}

func NewTranslateService(d Deps, cfg Config) (*TranslateService, error) {
	if d.Dedup == nil {
		return nil, errors.New("usecase: deduplicator must not be nil")
	}
	if d.Limiter == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	if d.Detector == nil {
		return nil, errors.New("usecase: language detector must not be nil")
	}
	if d.Cache == nil {
		return nil, errors.New("usecase: translation cache must not be nil")
	}
	if d.LLM == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if d.Replier == nil {
		return nil, errors.New("usecase: replier must not be nil")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Mention == "" {
		cfg.Mention = DefaultMention
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = DefaultMaxInflight
	}

	return &TranslateService{
		dedup:           d.Dedup,
		claims:          d.Claims,
		limiter:         d.Limiter,
		detector:        d.Detector,
		cache:           d.Cache,
		llm:             d.LLM,
		replier:         d.Replier,
		recorder:        d.Recorder,
		logger:          logger,
		model:           strings.TrimSpace(cfg.Model),
		mention:         cfg.Mention,
		cacheTTL:        cfg.CacheTTL,
		providerTimeout: cfg.ProviderTimeout,
		inflight:        semaphore.NewWeighted(cfg.MaxInflight),
	}, nil
}

// Handle processes one decoded message. Expected failures are reported in
// Result; the error return is reserved for a nil context.
func (s *TranslateService) Handle(ctx context.Context, msg domain.Message) (Result, error) {
	if ctx == nil {
		return Result{}, newError(ErrorInternal, "nil_context", nil)
	}
	log := s.logger.With("msg_id", msg.ID, "sender", msg.SenderID)

	if dup := s.isDuplicate(ctx, log, msg.ID); dup != nil {
		log.Info("duplicate message ignored", "reason", dup.Reason)
		return Result{
			Outcome: OutcomeDuplicate,
			Ack:     domain.AckAccepted,
			Status:  "duplicate, ignored",
			Err:     dup,
		}, nil
	}

	text := stripMention(msg.Text, s.mention)
	if text == "" {
		res := Result{Outcome: OutcomeEmpty, Ack: domain.AckAccepted, Status: "empty message"}
		return s.respond(ctx, log, msg, res, replyEmpty), nil
	}

	admitted, err := s.limiter.Admit(ctx, msg.SenderID)
	if err != nil {
		log.Warn("rate limiter unavailable, admitting", "err", err)
		admitted = true
	}
	if !admitted {
		log.Info("sender rate limited")
		res := Result{
			Outcome: OutcomeRateLimited,
			Ack:     domain.AckAccepted,
			Status:  "rate limited",
			Err:     newError(ErrorRateLimited, "sender_window_full", nil),
		}
		return s.respond(ctx, log, msg, res, replyRateLimited), nil
	}

	source := s.detector.Detect(text)
	if !source.Supported() {
		log.Warn("language unresolved, using default direction",
			"detected", string(source),
			"code", string(ErrorLanguageUnresolved),
		)
		source = domain.LanguageChinese
	}
	target := source.Counterpart()

	if cached, ok := s.cache.Lookup(text, source); ok {
		log.Debug("translation cache hit", "source", string(source))
		res := Result{
			Outcome:    OutcomeCacheHit,
			Ack:        domain.AckAccepted,
			Status:     "served from cache",
			SourceLang: source,
			TargetLang: target,
			FromCache:  true,
		}
		res = s.respond(ctx, log, msg, res, cached)
		s.record(ctx, log, msg, text, cached, res)
		return res, nil
	}

	raw, err := s.callProvider(ctx, buildPromptMessages(text, source, target))
	if err == nil {
		raw = cleanTranslation(raw)
		if raw == "" {
			err = fmt.Errorf("usecase: empty translation: %w", domain.ErrMalformedResponse)
		}
	}
	if err != nil {
		perr := classifyProviderError(err)
		log.Error("translation provider failed", "reason", perr.Reason, "err", err)
		res := Result{
			Outcome:    OutcomeProviderFailed,
			Ack:        domain.AckAccepted,
			Status:     "translation failed",
			SourceLang: source,
			TargetLang: target,
			Err:        perr,
		}
		return s.respond(ctx, log, msg, res, fmt.Sprintf(replyFailedFmt, failureSummary(perr))), nil
	}

	s.cache.Store(text, source, raw, s.cacheTTL)
	log.Info("message translated", "source", string(source), "target", string(target))

	res := Result{
		Outcome:    OutcomeTranslated,
		Ack:        domain.AckAccepted,
		Status:     "translated",
		SourceLang: source,
		TargetLang: target,
	}
	res = s.respond(ctx, log, msg, res, raw)
	s.record(ctx, log, msg, text, raw, res)
	return res, nil
}

func (s *TranslateService) isDuplicate(ctx context.Context, log *slog.Logger, id string) *Error {
	if s.dedup.Seen(id) {
		return newError(ErrorDuplicateMessage, "seen_in_window", nil)
	}
	if s.claims == nil || strings.TrimSpace(id) == "" {
		return nil
	}
	claimed, err := s.claims.ClaimMessage(ctx, id)
	if err != nil {
		log.Warn("message claim failed, continuing", "err", err)
		return nil
	}
	if !claimed {
		return newError(ErrorDuplicateMessage, "claimed_elsewhere", nil)
	}
	return nil
}

type providerResult struct {
	text string
	err  error
}

// callProvider runs the completion on its own goroutine. The timeout covers
// waiting for an in-flight slot as well as the call itself.
func (s *TranslateService) callProvider(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("usecase: wait for provider slot: %w", err)
	}

	done := make(chan providerResult, 1)
	go func() {
		defer s.inflight.Release(1)
		text, err := s.llm.Chat(ctx, s.model, messages, modelParams)
		done <- providerResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("usecase: provider call: %w", ctx.Err())
	}
}

func (s *TranslateService) respond(ctx context.Context, log *slog.Logger, msg domain.Message, res Result, text string) Result {
	res.Reply = text
	if err := s.replier.Reply(ctx, msg, text); err != nil {
		log.Error("reply delivery failed", "outcome", string(res.Outcome), "err", err)
		return res
	}
	res.Delivered = true
	return res
}

func (s *TranslateService) record(ctx context.Context, log *slog.Logger, msg domain.Message, text, translation string, res Result) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.RecordTranslation(ctx, domain.TranslationRecord{
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		ConversationID: msg.ConversationID,
		SourceLang:     res.SourceLang,
		TargetLang:     res.TargetLang,
		Text:           text,
		Translation:    translation,
		FromCache:      res.FromCache,
	})
	if err != nil {
		log.Warn("translation record not saved", "err", err)
	}
}

func classifyProviderError(err error) *Error {
	var timeoutErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		return newError(ErrorProvider, ReasonProviderDown, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return newError(ErrorProvider, ReasonProviderTimeout, err)
	case errors.Is(err, domain.ErrMalformedResponse):
		return newError(ErrorProvider, ReasonProviderMalformed, err)
	case errors.As(err, &timeoutErr) && timeoutErr.Timeout():
		return newError(ErrorProvider, ReasonProviderTimeout, err)
	}
	if status, ok := upstreamStatusCode(err); ok {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return newError(ErrorProvider, ReasonProviderAuth, err)
		case http.StatusTooManyRequests:
			return newError(ErrorProvider, ReasonProviderQuota, err)
		}
	}
	return newError(ErrorProvider, ReasonProviderNetwork, err)
}

var failureSummaries = map[string]string{
	ReasonProviderAuth:      "authentication failed",
	ReasonProviderQuota:     "quota exceeded",
	ReasonProviderNetwork:   "network error",
	ReasonProviderMalformed: "malformed response",
	ReasonProviderTimeout:   "timed out",
	ReasonProviderDown:      "service unavailable",
}

func failureSummary(e *Error) string {
	summary, ok := failureSummaries[e.Reason]
	if !ok {
		summary = e.Reason
	}
	if status, ok := upstreamStatusCode(e.Err); ok {
		return fmt.Sprintf("%s (status %d)", summary, status)
	}
	return summary
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
