package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "invitation_expired", Result(apperr.ErrInvitationExpired))
	assert.Equal(t, "internal", Result(errors.New("x")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(InvitationRedemptions.WithLabelValues("ok"))
	InvitationRedemptions.WithLabelValues("ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(InvitationRedemptions.WithLabelValues("ok")))
}
