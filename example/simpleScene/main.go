package main

import (
	"fmt"

	"github.com/akmonengine/plume"
	"github.com/akmonengine/plume/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactDebugger prints what the world reports during a step
type ContactDebugger interface {
	DebugBroadPhase(event plume.Event)
	DebugCollision(event plume.Event)
	DebugSleep(event plume.Event)
}

type SimpleDebugger struct{}

func (d *SimpleDebugger) DebugBroadPhase(event plume.Event) {
	switch e := event.(type) {
	case plume.BroadPhaseEnterEvent:
		fmt.Printf("   AABB overlap begins: %v / %v\n", e.BodyA.Id, e.BodyB.Id)
	case plume.BroadPhaseExitEvent:
		fmt.Printf("   AABB overlap ends: %v / %v\n", e.BodyA.Id, e.BodyB.Id)
	}
}

func (d *SimpleDebugger) DebugCollision(event plume.Event) {
	switch e := event.(type) {
	case plume.CollisionEnterEvent:
		fmt.Printf("   Contact: %v / %v, impulse %.4f\n", e.BodyA.Id, e.BodyB.Id, e.Impulse)
	case plume.CollisionExitEvent:
		fmt.Printf("   Separation: %v / %v\n", e.BodyA.Id, e.BodyB.Id)
	}
}

func (d *SimpleDebugger) DebugSleep(event plume.Event) {
	switch e := event.(type) {
	case plume.SleepEvent:
		fmt.Printf("   %v falls asleep\n", e.Body.Id)
	case plume.WakeEvent:
		fmt.Printf("   %v wakes up\n", e.Body.Id)
	}
}

// SetupScene drops a tilted cube and a sphere onto the ground plane
func SetupScene(debugger ContactDebugger) (*plume.World, *actor.RigidBody, *actor.RigidBody) {
	world := plume.NewWorld(actor.AABB{Min: mgl64.Vec3{-50, -10, -50}, Max: mgl64.Vec3{50, 50, 50}})
	world.Substeps = 2

	world.Events.Subscribe(plume.BROADPHASE_ENTER, debugger.DebugBroadPhase)
	world.Events.Subscribe(plume.BROADPHASE_EXIT, debugger.DebugBroadPhase)
	world.Events.Subscribe(plume.COLLISION_ENTER, debugger.DebugCollision)
	world.Events.Subscribe(plume.COLLISION_EXIT, debugger.DebugCollision)
	world.Events.Subscribe(plume.ON_SLEEP, debugger.DebugSleep)
	world.Events.Subscribe(plume.ON_WAKE, debugger.DebugSleep)

	planeBody := actor.NewRigidBody(actor.NewTransform(), &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}, actor.BodyTypeStatic, 0.0)
	planeBody.Id = "ground"
	planeBody.Material.Friction = 0.6
	world.AddBody(planeBody)

	cubeTransform := actor.Transform{
		Position: mgl64.Vec3{-5.0, 5.0, -5.0},
		Rotation: mgl64.QuatRotate(mgl64.DegToRad(20), mgl64.Vec3{0, 0, 1}),
	}
	cubeBody := actor.NewRigidBody(cubeTransform, &actor.Box{HalfExtents: mgl64.Vec3{1.5, 1.5, 1.5}}, actor.BodyTypeDynamic, 1.0)
	cubeBody.Id = "cube"
	cubeBody.Material.Friction = 0.6
	cubeBody.Material.Restitution = 0.3
	world.AddBody(cubeBody)

	sphereBody := actor.NewRigidBody(actor.At(mgl64.Vec3{5, 3, 5}), &actor.Sphere{Radius: 1}, actor.BodyTypeDynamic, 1.0)
	sphereBody.Id = "sphere"
	sphereBody.Material.Friction = 0.6
	sphereBody.Material.Restitution = 0.8
	world.AddBody(sphereBody)

	return world, cubeBody, sphereBody
}

func main() {
	fmt.Println("Cube and sphere falling on the ground")
	fmt.Println("=====================================")

	world, cubeBody, sphereBody := SetupScene(&SimpleDebugger{})

	const dt float64 = 1.0 / 60.0
	const maxSteps int = 300

	for step := range maxSteps {
		fmt.Printf("--- STEP %d ---\n", step+1)
		world.Step(dt)

		if step%10 == 0 {
			fmt.Printf("  Cube:   position %v, velocity %v (|w|=%.3f)\n",
				cubeBody.Transform.Position, cubeBody.Velocity, cubeBody.AngularVelocity.Len())
			fmt.Printf("  Sphere: position %v, velocity %v\n",
				sphereBody.Transform.Position, sphereBody.Velocity)
		}
	}

	fmt.Println("Done")
}
