package reward

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccountValidate(t *testing.T) {
	valid := Account{ID: "a", ReferralCode: "CODE", Balance: decimal.Zero}
	assert.NoError(t, valid.Validate())

	neg := valid
	neg.Balance = decimal.RequireFromString("-0.1")
	assert.ErrorIs(t, neg.Validate(), ErrInvalidAccount)

	noCode := valid
	noCode.ReferralCode = ""
	assert.ErrorIs(t, noCode.Validate(), ErrInvalidAccount)

	assert.ErrorIs(t, Account{ReferralCode: "X"}.Validate(), ErrInvalidAccount)
}

func TestParseWithdrawalStatus(t *testing.T) {
	for _, s := range []string{"pending", "completed", "rejected"} {
		st, err := ParseWithdrawalStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, s, string(st))
	}
	_, err := ParseWithdrawalStatus("approved")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	assert.False(t, WithdrawalPending.Terminal())
	assert.True(t, WithdrawalCompleted.Terminal())
	assert.True(t, WithdrawalRejected.Terminal())
}

func TestPersistenceKeepsSentinels(t *testing.T) {
	assert.Nil(t, Persistence("op", nil))
	assert.Equal(t, ErrNotFound, Persistence("op", ErrNotFound))

	err := Persistence("update profiles", assert.AnError)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, Retryable(err))
	assert.True(t, Retryable(ErrVersionConflict))
	assert.False(t, Retryable(ErrNotFound))
}

func TestInsufficientBalanceMessage(t *testing.T) {
	err := &InsufficientBalanceError{Balance: decimal.RequireFromString("99999.99"), Threshold: WithdrawalThreshold}
	assert.Equal(t, "insufficient balance: minimum withdrawal is 100000, current balance is 99999.99", err.Error())
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}
