package tournament

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/satyrpress/satyr/pkg/llm"
	"github.com/satyrpress/satyr/pkg/models"
	"github.com/satyrpress/satyr/pkg/prompt"
)

const (
	// finalRoundMax is the largest pool one judge call ranks directly.
	finalRoundMax = 20
	// groupTarget is the aimed-for elimination group size.
	groupTarget = 15
	// advancePerGroup is how many members survive each elimination group.
	advancePerGroup = 3
	// maxConcurrentJudges bounds in-flight judge calls within a round.
	maxConcurrentJudges = 50
)

// roundResult records one elimination round's non-advancers, bucketed by
// intra-group finish position (4th place, 5th place, ...).
type roundResult struct {
	tiers  map[int][]models.Headline
	maxPos int
}

// rankPool orders a candidate pool best to worst through elimination
// rounds and a final. The input is shuffled once up front to neutralize
// positional bias; thereafter ordering comes from the judge (or from a
// shuffle when a judge response is unusable).
func (e *Engine) rankPool(ctx context.Context, pool []models.Headline) ([]models.Headline, error) {
	remaining := slices.Clone(pool)
	e.rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	var rounds []roundResult
	for len(remaining) > finalRoundMax {
		groups := partition(remaining, groupTarget)
		verdicts := e.judgeGroups(ctx, groups)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run budget exhausted during elimination: %w", err)
		}

		result := roundResult{tiers: make(map[int][]models.Headline)}
		var next []models.Headline
		for gi, group := range groups {
			order := e.orderOrShuffle(verdicts[gi], len(group))
			for pos, idx := range order {
				if pos < advancePerGroup {
					next = append(next, group[idx])
					continue
				}
				p := pos + 1
				result.tiers[p] = append(result.tiers[p], group[idx])
				if p > result.maxPos {
					result.maxPos = p
				}
			}
		}
		rounds = append(rounds, result)
		remaining = next
	}

	ordered, err := e.finalRound(ctx, remaining)
	if err != nil {
		return nil, err
	}

	// Eliminated rounds in reverse chronological order, best finish
	// position first: everyone who placed 4th in the last elimination
	// round outranks everyone who placed 5th, and the whole of a later
	// round outranks any earlier one.
	for r := len(rounds) - 1; r >= 0; r-- {
		for p := advancePerGroup + 1; p <= rounds[r].maxPos; p++ {
			ordered = append(ordered, rounds[r].tiers[p]...)
		}
	}
	return ordered, nil
}

// finalRound ranks the surviving set with a single judge call. A lone
// survivor is ordered trivially without spending a call.
func (e *Engine) finalRound(ctx context.Context, remaining []models.Headline) ([]models.Headline, error) {
	if len(remaining) <= 1 {
		return remaining, nil
	}

	verdict := e.judge(ctx, llm.StageTournamentFinal, remaining)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run budget exhausted during final: %w", err)
	}

	order := e.orderOrShuffle(verdict, len(remaining))
	ordered := make([]models.Headline, 0, len(remaining))
	for _, idx := range order {
		ordered = append(ordered, remaining[idx])
	}
	return ordered, nil
}

// verdict is one group's raw judge response, or the error that replaced
// it.
type verdict struct {
	text string
	err  error
}

// judgeGroups runs one judge call per group, bounded-parallel. Responses
// are parsed later, sequentially, so the engine's rand stays single-
// threaded.
func (e *Engine) judgeGroups(ctx context.Context, groups [][]models.Headline) []verdict {
	verdicts := make([]verdict, len(groups))
	sem := make(chan struct{}, maxConcurrentJudges)

	var wg sync.WaitGroup
	for gi, group := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			verdicts[gi] = e.judge(ctx, llm.StageTournamentElim, group)
		}()
	}
	wg.Wait()
	return verdicts
}

// judge asks the stage's model to rank one group.
func (e *Engine) judge(ctx context.Context, stage llm.Stage, group []models.Headline) verdict {
	completion, err := e.gateway.Call(ctx, stage, llm.Request{
		System:      prompt.JudgeSystem,
		Prompt:      prompt.BuildRanking(group, e.cfg.Verbose),
		MaxTokens:   judgeMaxTokens(e.cfg.Verbose),
		Temperature: 0.5,
	})
	if err != nil {
		return verdict{err: err}
	}
	return verdict{text: completion.Text}
}

func judgeMaxTokens(verbose bool) int {
	if verbose {
		return 1024
	}
	return 128
}

// orderOrShuffle turns a verdict into a group ordering. A failed call or
// unparseable response degrades to a shuffle: the group still produces
// advancers and tiers, just arbitrary ones. Logged as an anomaly either
// way.
func (e *Engine) orderOrShuffle(v verdict, n int) []int {
	if v.err == nil {
		order, err := prompt.ParseRanking(v.text, n, e.rng)
		if err == nil {
			return order
		}
		e.log.Warn("Judge response unparseable, shuffling group",
			"group_size", n, "response_prefix", truncate(v.text, 80))
	} else {
		e.log.Warn("Judge call failed, shuffling group", "group_size", n, "error", v.err)
	}
	return e.rng.Perm(n)
}

// partition splits candidates into ceil(n/target) groups with sizes
// balanced within one.
func partition(candidates []models.Headline, target int) [][]models.Headline {
	n := len(candidates)
	g := (n + target - 1) / target
	base := n / g
	extra := n % g

	groups := make([][]models.Headline, 0, g)
	start := 0
	for i := range g {
		size := base
		if i < extra {
			size++
		}
		groups = append(groups, candidates[start:start+size])
		start += size
	}
	return groups
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
