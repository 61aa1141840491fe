package service

import (
	"context"
	"errors"
	"strconv"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/iris"

	"beasiswaku_backend/internals/features/scholarship/disbursements/model"
)

/* =========================================================
   Gateway contract
========================================================= */

// PayoutGateway pushes one disbursement to a payment provider and returns
// the provider's reference.
type PayoutGateway interface {
	Payout(ctx context.Context, d model.DisbursementModel) (string, error)
}

// GatewayFunc adapts a function to PayoutGateway.
type GatewayFunc func(ctx context.Context, d model.DisbursementModel) (string, error)

func (f GatewayFunc) Payout(ctx context.Context, d model.DisbursementModel) (string, error) {
	return f(ctx, d)
}

var ErrGatewayDisabled = errors.New("payout gateway is not configured")

/* =========================================================
   Midtrans Iris
========================================================= */

type MidtransIrisGateway struct {
	client iris.Client
}

// NewMidtransIrisGateway must get the Iris creator key, not the snap server key.
// useProduction=false talks to the sandbox.
func NewMidtransIrisGateway(apiKey string, useProduction bool) *MidtransIrisGateway {
	g := &MidtransIrisGateway{}
	if useProduction {
		g.client.New(apiKey, midtrans.Production)
	} else {
		g.client.New(apiKey, midtrans.Sandbox)
	}
	return g
}

func (g *MidtransIrisGateway) Payout(_ context.Context, d model.DisbursementModel) (string, error) {
	if d.DisbursementAmount <= 0 {
		return "", errors.New("invalid disbursement_amount")
	}
	detail := iris.CreatePayoutDetailReq{
		BeneficiaryName:    deref(d.DisbursementBeneficiaryName),
		BeneficiaryAccount: deref(d.DisbursementBeneficiaryAccount),
		BeneficiaryBank:    deref(d.DisbursementBeneficiaryBank),
		BeneficiaryEmail:   deref(d.DisbursementBeneficiaryEmail),
		Amount:             strconv.FormatInt(d.DisbursementAmount, 10),
		Notes:              "Scholarship " + d.DisbursementApplicationID.String(),
	}

	resp, merr := g.client.CreatePayout(iris.CreatePayoutReq{Payouts: []iris.CreatePayoutDetailReq{detail}})
	if merr != nil {
		return "", merr
	}
	if resp == nil || len(resp.Payouts) == 0 || resp.Payouts[0].ReferenceNo == "" {
		return "", errors.New("iris: payout accepted without a reference number")
	}
	return resp.Payouts[0].ReferenceNo, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
