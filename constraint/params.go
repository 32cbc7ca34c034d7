package constraint

import "math"

const (
	// MaxManifoldPoints is the number of contacts handled by one constraint.
	// Longer manifolds are split into several constraints.
	MaxManifoldPoints = 4
	// DIM is the dimension of the simulated space
	DIM = 3
)

// SpringRegularization turns contacts into stiff damped springs instead of
// rigid constraints. AngularFrequency is in rad/s.
type SpringRegularization struct {
	AngularFrequency float64
	DampingRatio     float64
}

func DefaultSpringRegularization() SpringRegularization {
	return SpringRegularization{
		AngularFrequency: 2 * math.Pi * 30,
		DampingRatio:     10,
	}
}

// ErpCfmImpulseScale derives, for a time step dt, the velocity bias applied
// per meter of penetration (erp), the compliance added to the generalized
// mass of a unit-mass contact (cfm) and the factor applied to the
// accumulated normal impulse on every solver iteration (impulseScale).
func (s SpringRegularization) ErpCfmImpulseScale(dt float64) (erp, cfm, impulseScale float64) {
	omega := s.AngularFrequency
	hw := dt * omega
	a1 := 2*s.DampingRatio + hw
	a2 := hw * a1

	erp = omega * inv(a1)
	cfm = inv(a2)
	impulseScale = a2 / (1 + a2)

	return erp, cfm, impulseScale
}

// IntegrationParameters configure one simulation step of the solver
type IntegrationParameters struct {
	// Dt is the time step in seconds
	Dt float64
	// Approach speeds below this threshold ignore restitution, so resting
	// contacts do not bounce forever
	RestitutionVelocityThreshold float64
	// WarmstartCoeff scales the impulses carried from the previous step
	WarmstartCoeff float64
	Regularization SpringRegularization
}

func DefaultIntegrationParameters() IntegrationParameters {
	return IntegrationParameters{
		Dt:                           1.0 / 60.0,
		RestitutionVelocityThreshold: 1.0,
		WarmstartCoeff:               1.0,
		Regularization:               DefaultSpringRegularization(),
	}
}

// InvDt is zero for a zero time step
func (p IntegrationParameters) InvDt() float64 {
	return inv(p.Dt)
}
