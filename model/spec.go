// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package model

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/danielhkuo/mrpcast/models"
)

// Variant selects the base or the extended (area covariates) model.
type Variant string

const (
	Base     Variant = models.VariantBase
	Extended Variant = models.VariantExtended
)

// ParseVariant accepts "base" or "extended".
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case Base, Extended:
		return Variant(s), nil
	}
	return "", fmt.Errorf("unknown model variant %q", s)
}

// Prior is a normal prior, optionally truncated to x >= 0.
type Prior struct {
	Mu          float64 `json:"mu"`
	Sigma       float64 `json:"sigma"`
	NonNegative bool    `json:"non_negative,omitempty"`
}

// LogDensity is the prior log density at x, -Inf outside the support.
func (p Prior) LogDensity(x float64) float64 {
	if p.NonNegative {
		if x < 0 {
			return math.Inf(-1)
		}
		// Half-normal: twice the normal density on [0, inf)
		return distuv.Normal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(x) + math.Ln2
	}
	return distuv.Normal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(x)
}

// Parameter names. Coefficients are keyed by column or covariate name,
// area intercepts by their AreaIndex position.
const (
	ParamIntercept = "alpha"
	ParamAreaScale = "tau"
)

func BetaParam(column string) string { return "beta[" + column + "]" }

func GammaParam(covariate string) string { return "gamma[" + covariate + "]" }

func EtaParam(area int) string { return "eta[" + strconv.Itoa(area) + "]" }

// Spec declares the hierarchical logistic regression
//
//	logit P(vote=1) = alpha + X·beta + eta[area] (+ Z·gamma)
//	alpha ~ N(0,1), beta_k ~ N(0,1), eta_j ~ N(0,tau), tau ~ N+(0,1), gamma_l ~ N(0,1)
type Spec struct {
	Variant        Variant  `json:"variant"`
	Columns        []string `json:"columns"`
	AreaCovariates []string `json:"area_covariates,omitempty"`

	InterceptPrior   Prior `json:"intercept_prior"`
	CoefficientPrior Prior `json:"coefficient_prior"`
	AreaScalePrior   Prior `json:"area_scale_prior"`
	AreaCoefPrior    Prior `json:"area_coef_prior"`
}

func standardPriors(s *Spec) {
	s.InterceptPrior = Prior{Mu: 0, Sigma: 1}
	s.CoefficientPrior = Prior{Mu: 0, Sigma: 1}
	s.AreaScalePrior = Prior{Mu: 0, Sigma: 1, NonNegative: true}
	s.AreaCoefPrior = Prior{Mu: 0, Sigma: 1}
}

// NewBaseSpec declares the model without area-level covariates.
func NewBaseSpec(columns []string) *Spec {
	s := &Spec{Variant: Base, Columns: append([]string(nil), columns...)}
	standardPriors(s)
	return s
}

// NewExtendedSpec declares the model with area-level covariates.
func NewExtendedSpec(columns, areaCovariates []string) (*Spec, error) {
	if len(areaCovariates) == 0 {
		return nil, fmt.Errorf("extended model needs at least one area covariate")
	}
	s := &Spec{
		Variant:        Extended,
		Columns:        append([]string(nil), columns...),
		AreaCovariates: append([]string(nil), areaCovariates...),
	}
	standardPriors(s)
	return s, nil
}

// ParamNames lists every parameter the fit must retain for J areas.
func (s *Spec) ParamNames(areas int) []string {
	names := []string{ParamIntercept, ParamAreaScale}
	for _, c := range s.Columns {
		names = append(names, BetaParam(c))
	}
	for j := 1; j <= areas; j++ {
		names = append(names, EtaParam(j))
	}
	if s.Variant == Extended {
		for _, c := range s.AreaCovariates {
			names = append(names, GammaParam(c))
		}
	}
	return names
}
