package constraint

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/akmonengine/plume/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// faceManifold holds the four corners of the face shared by two unit boxes,
// body1 centered at the origin and body2 at (1, 0, 0).
func faceManifold() *ContactManifold {
	manifold := &ContactManifold{
		Body1:               0,
		Body2:               1,
		Normal:              mgl64.Vec3{1, 0, 0},
		WarmstartMultiplier: 1,
	}
	for _, y := range []float64{-0.5, 0.5} {
		for _, z := range []float64{-0.5, 0.5} {
			manifold.SolverContacts = append(manifold.SolverContacts, SolverContact{
				Point: mgl64.Vec3{0.5, y, z},
			})
		}
	}
	return manifold
}

func TestTwoBody_HeadOnCollision(t *testing.T) {
	box1 := unitBox(mgl64.Vec3{0, 0, 0}, 0)
	box2 := unitBox(mgl64.Vec3{1, 0, 0}, 1)
	box1.Velocity = mgl64.Vec3{1, 0, 0}
	box2.Velocity = mgl64.Vec3{-1, 0, 0}
	bodies := []*actor.RigidBody{box1, box2}
	manifold := faceManifold()

	mjLambdas := solveStep(DefaultIntegrationParameters(), []*ContactManifold{manifold}, bodies, 50)

	momentum := mjLambdas[0].Linear.Add(mjLambdas[1].Linear)
	if momentum.Len() > epsilon {
		t.Errorf("linear momentum changed by %v", momentum)
	}
	if v := box1.Velocity.X(); math.Abs(v) > 0.1 {
		t.Errorf("box1 velocity = %v, want about 0", v)
	}
	if v := box2.Velocity.X(); math.Abs(v) > 0.1 {
		t.Errorf("box2 velocity = %v, want about 0", v)
	}
	if manifold.TotalNormalImpulse() <= 0 {
		t.Errorf("total normal impulse = %v, want > 0", manifold.TotalNormalImpulse())
	}
}

func TestTwoBody_SeparatingBodiesAreLeftAlone(t *testing.T) {
	box1 := unitBox(mgl64.Vec3{0, 0, 0}, 0)
	box2 := unitBox(mgl64.Vec3{1.2, 0, 0}, 1)
	box1.Velocity = mgl64.Vec3{-1, 0, 0}
	box2.Velocity = mgl64.Vec3{1, 0, 0}
	bodies := []*actor.RigidBody{box1, box2}

	manifold := faceManifold()
	for k := range manifold.SolverContacts {
		manifold.SolverContacts[k].Dist = 0.2
	}

	mjLambdas := solveStep(DefaultIntegrationParameters(), []*ContactManifold{manifold}, bodies, 10)

	if manifold.TotalNormalImpulse() != 0 {
		t.Errorf("total normal impulse = %v, want 0", manifold.TotalNormalImpulse())
	}
	if mjLambdas[0].Linear.Len() != 0 || mjLambdas[1].Linear.Len() != 0 {
		t.Errorf("delta velocities = %v, %v, want zero", mjLambdas[0], mjLambdas[1])
	}
}

// Both boxes are pressed against each other while box2 spins about the
// contact normal.
func TestTwoBody_TwistFrictionStopsRelativeSpin(t *testing.T) {
	tests := []struct {
		name     string
		friction float64
		spinning bool
	}{
		{"with friction", 0.5, false},
		{"frictionless", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultIntegrationParameters()
			box1 := unitBox(mgl64.Vec3{0, 0, 0}, 0)
			box2 := unitBox(mgl64.Vec3{1, 0, 0}, 1)
			box2.AngularVelocity = mgl64.Vec3{3, 0, 0}
			bodies := []*actor.RigidBody{box1, box2}
			manifold := faceManifold()
			for k := range manifold.SolverContacts {
				manifold.SolverContacts[k].Friction = tt.friction
			}
			push := mgl64.Vec3{9.81 * params.Dt, 0, 0}

			for range 30 {
				box1.Velocity = box1.Velocity.Add(push)
				box2.Velocity = box2.Velocity.Sub(push)
				solveStep(params, []*ContactManifold{manifold}, bodies, 10)
			}

			w1, w2 := box1.AngularVelocity.X(), box2.AngularVelocity.X()
			if math.Abs(w1+w2-3) > 1e-6 {
				t.Errorf("spins %v + %v, want the angular momentum kept at 3", w1, w2)
			}
			if tt.spinning {
				if w1 != 0 || w2 != 3 {
					t.Errorf("spins = %v, %v, want 0 and 3", w1, w2)
				}
			} else if math.Abs(w2-w1) > 0.01 {
				t.Errorf("relative spin = %v, want 0", w2-w1)
			}
		})
	}
}

func TestTwoBody_RequiresTwoDynamicBodies(t *testing.T) {
	bodies := []*actor.RigidBody{groundBody(), unitBox(mgl64.Vec3{0, 0.5, 0}, 0)}

	defer func() {
		if recover() == nil {
			t.Error("expected a panic with a static body")
		}
	}()

	var constraints VelocityConstraints
	GenerateTwoBody(DefaultIntegrationParameters(), 0, restingManifold(0, 1, 0.5), bodies, &constraints, GeneratePush)
}

func TestTwoBody_ImpulseBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 17))
	params := DefaultIntegrationParameters()

	for scene := range 50 {
		manifolds, bodies := randomScene(rng)

		var constraints VelocityConstraints
		constraints.Generate(params, manifolds, bodies)
		mjLambdas := make([]DeltaVel, len(bodies))
		constraints.Warmstart(mjLambdas)

		for iteration := range 5 {
			frictionLimits := make([]float64, len(constraints.TwoBody))
			for i, c := range constraints.TwoBody {
				for k := range c.numContacts {
					frictionLimits[i] += c.elements[k].impulse
				}
				frictionLimits[i] *= c.limit
			}

			constraints.Solve(mjLambdas)

			for i, c := range constraints.TwoBody {
				twistLimit := 0.0
				for k := range MaxManifoldPoints {
					impulse := c.elements[k].impulse
					if k >= c.numContacts && impulse != 0 {
						t.Fatalf("scene %d iteration %d: unused element %d holds %v", scene, iteration, k, impulse)
					}
					if impulse < 0 {
						t.Fatalf("scene %d iteration %d: negative normal impulse %v", scene, iteration, impulse)
					}
					twistLimit += impulse * c.twistWeights[k]
				}
				twistLimit *= c.limit

				for j, part := range c.tangentParts {
					if math.Abs(part.impulse) > frictionLimits[i]+epsilon {
						t.Fatalf("scene %d iteration %d: tangent %d impulse %v exceeds %v", scene, iteration, j, part.impulse, frictionLimits[i])
					}
				}
				if math.Abs(c.twistPart.impulse) > twistLimit+epsilon {
					t.Fatalf("scene %d iteration %d: twist impulse %v exceeds %v", scene, iteration, c.twistPart.impulse, twistLimit)
				}
			}
		}
	}
}

func TestTwoBody_WritebackReproducesWarmstart(t *testing.T) {
	bodies := []*actor.RigidBody{unitBox(mgl64.Vec3{0, 0, 0}, 0), unitBox(mgl64.Vec3{1, 0, 0}, 1)}
	manifold := faceManifold()
	manifold.TwistImpulse = -0.2
	for k := range manifold.SolverContacts {
		manifold.SolverContacts[k].Data = ContactData{Impulse: 0.5, TangentImpulse: [2]float64{0.1, 0.3}}
	}

	var constraints VelocityConstraints
	constraints.Generate(DefaultIntegrationParameters(), []*ContactManifold{manifold}, bodies)
	if len(constraints.TwoBody) != 1 || len(constraints.Ground) != 0 {
		t.Fatalf("generated %d two body and %d ground constraints", len(constraints.TwoBody), len(constraints.Ground))
	}

	constraints.WritebackImpulses([]*ContactManifold{manifold})

	for k, contact := range manifold.SolverContacts {
		data := contact.Data
		if math.Abs(data.Impulse-0.5) > epsilon ||
			math.Abs(data.TangentImpulse[0]-0.1) > epsilon ||
			math.Abs(data.TangentImpulse[1]-0.3) > epsilon {
			t.Errorf("contact %d data = %+v", k, data)
		}
	}
	if math.Abs(manifold.TwistImpulse+0.2) > epsilon {
		t.Errorf("twist impulse = %v, want -0.2", manifold.TwistImpulse)
	}
}
