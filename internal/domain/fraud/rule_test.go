package fraud_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
)

func constRule(id string, delta int, calls *[]string) fraud.Rule {
	return fraud.Rule{
		ID:   id,
		Name: id,
		Evaluate: func(_ *transaction.Transaction, _ fraud.Evidence) *fraud.RuleResult {
			*calls = append(*calls, id)
			return &fraud.RuleResult{RuleName: id, ScoreChange: delta}
		},
	}
}

func abstain(id string, calls *[]string) fraud.Rule {
	return fraud.Rule{
		ID: id,
		Evaluate: func(_ *transaction.Transaction, _ fraud.Evidence) *fraud.RuleResult {
			*calls = append(*calls, id)
			return nil
		},
	}
}

func TestRuleSet_CollectAll(t *testing.T) {
	var calls []string
	set := fraud.RuleSet{
		Stage: fraud.StageCreation,
		Mode:  fraud.ModeCollectAll,
		Rules: []fraud.Rule{constRule("a", 5, &calls), abstain("b", &calls), constRule("c", 10, &calls)},
	}
	tx := transaction.NewTransaction(decimal.NewFromInt(1), transaction.USD, "", time.Now())

	results := set.Run(tx, fraud.Evidence{})

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].RuleID)
	assert.Equal(t, "c", results[1].RuleID)
}

func TestRuleSet_FirstMatchStopsAtFirstResult(t *testing.T) {
	var calls []string
	set := fraud.RuleSet{
		Stage: fraud.StageMerchant,
		Mode:  fraud.ModeFirstMatch,
		Rules: []fraud.Rule{abstain("a", &calls), constRule("b", 10, &calls), constRule("c", 20, &calls)},
	}
	tx := transaction.NewTransaction(decimal.NewFromInt(1), transaction.USD, "", time.Now())

	result := set.First(tx, fraud.Evidence{})

	require.NotNil(t, result)
	assert.Equal(t, "b", result.RuleID)
	assert.Equal(t, 10, result.ScoreChange)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestRuleSet_FirstAllAbstain(t *testing.T) {
	var calls []string
	set := fraud.RuleSet{Mode: fraud.ModeFirstMatch, Rules: []fraud.Rule{abstain("a", &calls)}}
	tx := transaction.NewTransaction(decimal.NewFromInt(1), transaction.USD, "", time.Now())

	assert.Nil(t, set.First(tx, fraud.Evidence{}))
}

func TestStage_EventType(t *testing.T) {
	assert.Equal(t, fraud.EventTransactionCreated, fraud.StageCreation.EventType())
	assert.Equal(t, fraud.EventMerchantData, fraud.StageMerchant.EventType())
	assert.Equal(t, fraud.EventDeviceData, fraud.StageDevice.EventType())
	assert.Equal(t, fraud.EventOTPVerification, fraud.StageOTP.EventType())
}

func TestEvalMode_String(t *testing.T) {
	assert.Equal(t, "collect_all", fraud.ModeCollectAll.String())
	assert.Equal(t, "first_match", fraud.ModeFirstMatch.String())
}
