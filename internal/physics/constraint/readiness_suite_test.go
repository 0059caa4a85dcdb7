package constraint_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Faultbox/midgard-physics/internal/config"
	"github.com/Faultbox/midgard-physics/internal/physics"
	"github.com/Faultbox/midgard-physics/internal/physics/constraint"
	"github.com/Faultbox/midgard-physics/internal/physics/engine"
	"github.com/Faultbox/midgard-physics/internal/physics/engine/simple"
	"github.com/Faultbox/midgard-physics/internal/physics/rigidbody"
	"github.com/Faultbox/midgard-physics/internal/physics/shape"
	"github.com/Faultbox/midgard-physics/internal/scene"
	"github.com/Faultbox/midgard-physics/pkg/math"
)

func TestReadiness(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Constraint readiness")
}

var _ = Describe("constraint readiness", func() {
	var (
		world        *physics.World
		self, target *rigidbody.Body
		events       []string
	)

	body := func(name string, pos math.Vec3) *rigidbody.Body {
		node := scene.NewBox(name, math.Vec3{X: 1, Y: 1, Z: 1})
		node.Position = pos
		b := rigidbody.New(world, node, rigidbody.Options{Shape: shape.Descriptor{Kind: shape.Box}, Mass: 1})
		b.OnReady(func(*rigidbody.Body) { events = append(events, name+" ready") })
		return b
	}

	BeforeEach(func() {
		var err error
		world, err = physics.NewWorld(simple.New(), config.Default().Physics)
		Expect(err).NotTo(HaveOccurred())
		events = nil
		self = body("self", math.Vec3{})
		target = body("target", math.Vec3{X: 2})
	})

	Context("when declared before either body exists", func() {
		var slider *constraint.Slider

		BeforeEach(func() {
			slider = constraint.NewSlider(self)
			slider.Target = target
			slider.Wait(func(engine.SliderConstraint) { events = append(events, "slider built") })
			Expect(slider.Start()).To(Succeed())
		})

		It("does not build anything yet", func() {
			_, ok := slider.Constraint()
			Expect(ok).To(BeFalse())
			Expect(world.NumConstraints()).To(BeZero())
		})

		It("waits for the target after the self body", func() {
			Expect(self.Start()).To(Succeed())
			_, ok := slider.Constraint()
			Expect(ok).To(BeFalse())

			Expect(target.Start()).To(Succeed())
			Expect(events).To(Equal([]string{"self ready", "target ready", "slider built"}))
			Expect(world.NumConstraints()).To(Equal(1))
		})

		It("builds once the self body is ready when the target came first", func() {
			Expect(target.Start()).To(Succeed())
			Expect(world.NumConstraints()).To(BeZero())

			Expect(self.Start()).To(Succeed())
			Expect(events).To(Equal([]string{"target ready", "self ready", "slider built"}))

			native, ok := slider.Constraint()
			Expect(ok).To(BeTrue())
			Expect(native.BodyA()).To(BeIdenticalTo(self.Native()))
			Expect(native.BodyB()).To(BeIdenticalTo(target.Native()))
		})

		It("never builds when destroyed while waiting", func() {
			slider.Destroy()
			Expect(self.Start()).To(Succeed())
			Expect(target.Start()).To(Succeed())
			Expect(world.NumConstraints()).To(BeZero())
			Expect(events).NotTo(ContainElement("slider built"))
		})
	})

	Context("when both bodies are already active", func() {
		BeforeEach(func() {
			Expect(self.Start()).To(Succeed())
			Expect(target.Start()).To(Succeed())
		})

		It("builds synchronously on start", func() {
			p2p := constraint.NewPointToPoint(self)
			p2p.Target = target
			Expect(p2p.Start()).To(Succeed())

			_, ok := p2p.Constraint()
			Expect(ok).To(BeTrue())
		})

		It("runs waiters registered after the build at once", func() {
			hinge := constraint.NewHinge(self)
			Expect(hinge.Start()).To(Succeed())

			called := false
			hinge.Wait(func(engine.HingeConstraint) { called = true })
			Expect(called).To(BeTrue())
			Eventually(hinge.Ready().Done()).Should(BeClosed())
		})
	})
})
