package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/dishgraph/backend/internal/util"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/extract"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/logger"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/resolve"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

const (
	DeadLetterSchema      = "schema_violation"
	DeadLetterExtraction  = "extraction_failed"
	DeadLetterTransaction = "transaction_failed"

	sentimentPositive       = "positive"
	sentimentRecommendation = "recommendation"
)

// Batch is a bounded set of content units processed as one job.
type Batch struct {
	ID    string
	Units []common.ContentUnit
}

type unitState int

const (
	statePending unitState = iota
	stateSkipped
	stateInherit
	stateReady
	stateFailed
)

type unitOutcome struct {
	state   unitState
	reason  extract.SkipReason
	scope   extract.Scope
	records []common.MentionRecord
}

// ProcessBatch runs all units of batch through the pipeline and persists
// the surviving mentions. Each unit is committed in its own transaction.
// Cancelling ctx stops the batch between units. The report is returned
// together with ctx.Err() in that case.
func (g *GraphClient) ProcessBatch(
	ctx context.Context,
	batch Batch,
	extractor extract.Extractor,
	storage store.GraphStorage,
) (*common.BatchReport, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	report := &common.BatchReport{
		RunID:       runID,
		BatchID:     batch.ID,
		StartedAt:   g.now(),
		Units:       len(batch.Units),
		SkipReasons: map[string]int{},
	}
	logger.Info("[Batch] Starting batch", "batch", batch.ID, "run", runID, "units", len(batch.Units))

	known, err := storage.KnownRestaurants(ctx, g.knownRestaurants)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("load known restaurants: %w", err)
	}

	outcomes := g.extractUnits(ctx, batch.Units, known, extractor, storage, runID)
	if ctx.Err() == nil {
		g.inheritRecords(ctx, batch.Units, outcomes, known, extractor)
	}

	var arena *resolve.Arena
	if ctx.Err() == nil {
		err = storage.WithSnapshot(ctx, func(r store.Reader) error {
			var err error
			arena, err = g.resolver.Plan(ctx, r, planKeys(outcomes))
			return err
		})
		if err != nil && ctx.Err() == nil {
			// units still resolve one by one without a plan
			logger.Warn("[Batch] Failed to plan entity resolution", "batch", batch.ID, "err", err)
			arena = nil
		}
	}

	for i, unit := range batch.Units {
		o := outcomes[i]
		switch o.state {
		case stateSkipped:
			report.Skipped++
			report.SkipReasons[string(o.reason)]++
			continue
		case stateFailed:
			report.Failed++
			report.FailedSources = append(report.FailedSources, unit.Ref())
			continue
		case statePending, stateInherit:
			// not reached before cancellation
			continue
		}

		if ctx.Err() != nil {
			continue
		}
		counts, err := g.commitUnit(ctx, storage, arena, unit, o)
		if err != nil {
			logger.Error("[Batch] Failed to persist unit", "source", unit.Ref().String(), "err", err)
			report.Failed++
			report.FailedSources = append(report.FailedSources, unit.Ref())
			g.deadLetter(storage, runID, DeadLetterTransaction, unit, err)
			continue
		}
		report.Admitted++
		report.ResolvedExisting += counts.existing
		report.CreatedNew += counts.created
		report.MentionsInserted += counts.inserted
		report.MentionsIgnored += counts.ignored
	}

	report.Cancelled = ctx.Err() != nil
	report.FinishedAt = g.now()
	if err := storage.SaveBatchRun(context.WithoutCancel(ctx), report); err != nil {
		logger.Error("[Batch] Failed to save batch run", "run", runID, "err", err)
	}
	logger.Info("[Batch] Finished batch",
		"batch", batch.ID,
		"admitted", report.Admitted,
		"skipped", report.Skipped,
		"resolved_existing", report.ResolvedExisting,
		"created_new", report.CreatedNew,
		"failed", report.Failed,
		"cancelled", report.Cancelled,
	)
	if report.Cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// extractUnits gates and extracts all units in parallel. Units that were
// not reached before ctx was cancelled stay pending.
func (g *GraphClient) extractUnits(
	ctx context.Context,
	units []common.ContentUnit,
	known []string,
	extractor extract.Extractor,
	storage store.GraphStorage,
	runID string,
) []unitOutcome {
	outcomes := make([]unitOutcome, len(units))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelUnits)
	for i, unit := range units {
		eg.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			scope := extract.NewScope(unit, known)
			dec := extract.Gate(unit, scope)
			switch dec.Verdict {
			case extract.VerdictSkip:
				logger.Debug("[Batch] Skipping unit", "source", unit.Ref().String(), "reason", dec.Reason)
				outcomes[i] = unitOutcome{state: stateSkipped, reason: dec.Reason, scope: scope}
				return nil
			case extract.VerdictInherit:
				outcomes[i] = unitOutcome{state: stateInherit, scope: scope}
				return nil
			}

			records, err := g.extractRecords(gCtx, extractor, unit, scope)
			if err != nil {
				if gCtx.Err() != nil {
					return nil
				}
				kind := DeadLetterExtraction
				if errors.Is(err, extract.ErrSchemaViolation) {
					kind = DeadLetterSchema
				}
				logger.Error("[Batch] Failed to extract unit", "source", unit.Ref().String(), "kind", kind, "err", err)
				g.deadLetter(storage, runID, kind, unit, err)
				outcomes[i] = unitOutcome{state: stateFailed, scope: scope}
				return nil
			}

			records, reason := extract.Validate(unit, scope, records)
			if reason != "" {
				logger.Debug("[Batch] Skipping unit", "source", unit.Ref().String(), "reason", reason)
				outcomes[i] = unitOutcome{state: stateSkipped, reason: reason, scope: scope}
				return nil
			}
			outcomes[i] = unitOutcome{state: stateReady, scope: scope, records: records}
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

// extractRecords calls the extractor with retries and normalizes its output.
func (g *GraphClient) extractRecords(
	ctx context.Context,
	extractor extract.Extractor,
	unit common.ContentUnit,
	scope extract.Scope,
) ([]common.MentionRecord, error) {
	raw, err := util.RetryWithBackoff(ctx, g.extractBackoff, func(ctx context.Context) (*extract.RawCandidates, error) {
		callCtx := ctx
		if g.extractTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.extractTimeout)
			defer cancel()
		}
		raw, err := extractor.Extract(callCtx, unit, scope)
		if err != nil {
			if ctx.Err() == nil && callCtx.Err() != nil {
				// a timed out call is retried like any other failure
				return nil, fmt.Errorf("extract %s: timed out after %s", unit.Ref(), g.extractTimeout)
			}
			return nil, err
		}
		if err := raw.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", extract.ErrSchemaViolation, err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return g.normalizer.Normalize(unit, scope, raw), nil
}

// inheritRecords gives short affirmations the records of their parent.
// The parent is looked up in the batch first and extracted from the parent
// context otherwise.
func (g *GraphClient) inheritRecords(
	ctx context.Context,
	units []common.ContentUnit,
	outcomes []unitOutcome,
	known []string,
	extractor extract.Extractor,
) {
	bySource := make(map[string]int, len(units))
	for i, u := range units {
		if u.SourceID != "" {
			bySource[u.SourceID] = i
		}
	}

	parentCache := map[string][]common.MentionRecord{}

	for i, unit := range units {
		if outcomes[i].state != stateInherit {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		var parent []common.MentionRecord
		if j, ok := bySource[unit.ParentID]; ok && unit.ParentID != "" && outcomes[j].state == stateReady {
			parent = outcomes[j].records
		} else if text := unit.ParentContextText; text != "" {
			cached, ok := parentCache[text]
			if !ok {
				cached = g.extractParent(ctx, unit, known, extractor)
				parentCache[text] = cached
			}
			parent = cached
		}

		if len(parent) == 0 {
			outcomes[i] = unitOutcome{state: stateSkipped, reason: extract.ReasonNoParent, scope: outcomes[i].scope}
			continue
		}

		scope := outcomes[i].scope
		scope.Inherited = parent
		records, reason := extract.Validate(unit, scope, extract.Inherit(unit, parent))
		if reason != "" {
			outcomes[i] = unitOutcome{state: stateSkipped, reason: reason, scope: scope}
			continue
		}
		outcomes[i] = unitOutcome{state: stateReady, scope: scope, records: records}
	}
}

func (g *GraphClient) extractParent(ctx context.Context, unit common.ContentUnit, known []string, extractor extract.Extractor) []common.MentionRecord {
	parentUnit := common.ContentUnit{
		Text:            unit.ParentContextText,
		ExtractFromPost: true,
		SourceType:      common.SourceTypeComment,
		SourceID:        unit.ParentID,
		Subreddit:       unit.Subreddit,
		CreatedAt:       unit.CreatedAt,
	}
	if parentUnit.SourceID == "" {
		parentUnit.SourceID = unit.SourceID + ":parent"
	}
	scope := extract.NewScope(parentUnit, known)
	if dec := extract.Gate(parentUnit, scope); dec.Verdict != extract.VerdictAdmit {
		return nil
	}
	records, err := g.extractRecords(ctx, extractor, parentUnit, scope)
	if err != nil {
		logger.Warn("[Batch] Failed to extract parent context", "source", unit.Ref().String(), "err", err)
		return nil
	}
	records, _ = extract.Validate(parentUnit, scope, records)
	return records
}

// planKeys lists every entity name the ready units will resolve.
func planKeys(outcomes []unitOutcome) []resolve.Key {
	var keys []resolve.Key
	for _, o := range outcomes {
		if o.state != stateReady {
			continue
		}
		for _, r := range o.records {
			keys = append(keys, resolve.Key{Name: r.RestaurantName, Type: common.EntityTypeRestaurant})
			if r.FoodName != "" {
				keys = append(keys, resolve.Key{Name: r.FoodName, Type: common.EntityTypeFood})
			}
			for _, c := range r.Categories {
				keys = append(keys, resolve.Key{Name: c, Type: common.EntityTypeFood})
			}
			for _, a := range r.SelectiveAttributes() {
				keys = append(keys, resolve.Key{Name: a, Type: common.EntityTypeDishAttribute})
			}
			for _, a := range r.RestaurantAttributes {
				keys = append(keys, resolve.Key{Name: a, Type: common.EntityTypeRestaurantAttribute})
			}
		}
	}
	return keys
}

type unitCounts struct {
	existing int
	created  int
	inserted int
	ignored  int
	seen     map[int64]bool
}

// count records a resolution once per entity and unit.
func (c *unitCounts) count(res resolve.Resolution) {
	if c.seen[res.Entity.ID] {
		return
	}
	if c.seen == nil {
		c.seen = map[int64]bool{}
	}
	c.seen[res.Entity.ID] = true
	if res.Created() {
		c.created++
	} else {
		c.existing++
	}
}

// commitUnit resolves and upserts all records of one unit in a single
// transaction, retrying the whole transaction with backoff. The unit is
// finished even when ctx is cancelled meanwhile.
func (g *GraphClient) commitUnit(
	ctx context.Context,
	storage store.GraphStorage,
	arena *resolve.Arena,
	unit common.ContentUnit,
	o unitOutcome,
) (unitCounts, error) {
	txCtx := context.WithoutCancel(ctx)
	sentiment := sentimentPositive
	if o.scope.ParentRequest {
		sentiment = sentimentRecommendation
	}

	return util.RetryWithBackoff(txCtx, g.txBackoff, func(ctx context.Context) (unitCounts, error) {
		var counts unitCounts
		err := storage.WithTx(ctx, func(q store.Queries) error {
			counts = unitCounts{}
			for _, r := range o.records {
				in, err := g.resolveRecord(ctx, q, arena, r, &counts)
				if err != nil {
					return err
				}
				in.Mention = common.Mention{
					SourceType:    r.Source.Type,
					SourceID:      r.Source.ID,
					Excerpt:       unit.Text,
					Upvotes:       unit.Upvotes,
					SourceURL:     unit.SourceURL,
					Sentiment:     sentiment,
					GeneralPraise: r.GeneralPraise,
					CreatedAt:     unit.CreatedAt,
				}
				in.Now = g.now()

				res, err := Upsert(ctx, q, in)
				if err != nil {
					return err
				}
				if res.MentionInserted {
					counts.inserted++
				} else {
					counts.ignored++
				}
			}
			return nil
		})
		if isPermanent(err) {
			return counts, util.Permanent(err)
		}
		return counts, err
	})
}

func (g *GraphClient) resolveRecord(
	ctx context.Context,
	q store.Queries,
	arena *resolve.Arena,
	r common.MentionRecord,
	counts *unitCounts,
) (UpsertInput, error) {
	resolveOne := func(name string, t common.EntityType) (int64, error) {
		res, err := g.resolver.ResolveIn(ctx, q, arena, name, t)
		if err != nil {
			return 0, fmt.Errorf("resolve %s %q: %w", t, name, err)
		}
		counts.count(res)
		return res.Entity.ID, nil
	}

	var in UpsertInput
	var err error
	if in.RestaurantID, err = resolveOne(r.RestaurantName, common.EntityTypeRestaurant); err != nil {
		return in, err
	}
	if r.FoodName != "" {
		if in.FoodID, err = resolveOne(r.FoodName, common.EntityTypeFood); err != nil {
			return in, err
		}
	}
	for _, c := range r.Categories {
		if c == r.FoodName {
			continue
		}
		id, err := resolveOne(c, common.EntityTypeFood)
		if err != nil {
			return in, err
		}
		if id != in.FoodID {
			in.CategoryIDs = append(in.CategoryIDs, id)
		}
	}
	for _, a := range r.SelectiveAttributes() {
		id, err := resolveOne(a, common.EntityTypeDishAttribute)
		if err != nil {
			return in, err
		}
		in.DishAttributeIDs = append(in.DishAttributeIDs, id)
	}
	for _, a := range r.RestaurantAttributes {
		id, err := resolveOne(a, common.EntityTypeRestaurantAttribute)
		if err != nil {
			return in, err
		}
		in.RestaurantAttributeIDs = append(in.RestaurantAttributeIDs, id)
	}
	in.IsMenuItem = r.IsMenuItem && r.FoodName != ""
	return in, nil
}

// isPermanent reports errors that a retried transaction cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, resolve.ErrInvalidName)
}

func (g *GraphClient) deadLetter(storage store.GraphStorage, runID, kind string, unit common.ContentUnit, cause error) {
	id, err := gonanoid.New()
	if err != nil {
		logger.Error("[Batch] Failed to generate dead letter id", "err", err)
		return
	}
	d := common.DeadLetter{
		ID:        id,
		RunID:     runID,
		Kind:      kind,
		Source:    unit.Ref(),
		Unit:      unit,
		Error:     cause.Error(),
		CreatedAt: g.now(),
	}
	if err := storage.SaveDeadLetter(context.Background(), d); err != nil {
		logger.Error("[Batch] Failed to save dead letter", "source", unit.Ref().String(), "err", err)
	}
}
