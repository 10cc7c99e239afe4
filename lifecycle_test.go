package deathchest

import (
	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Death chest lifecycle", func() {
	var env *testEnv

	Context("without a falling animation", func() {
		BeforeEach(func() {
			env = newTestEnv(GinkgoT(), nil)
		})

		It("maps fractional coordinates of one block to one chest", func() {
			Expect(env.m.Create(request(at(4.7, 64.0, -2.1), items("a")...))).To(Succeed())
			Expect(env.m.Create(request(at(4.2, 64.9, -2.9), items("b")...))).To(MatchError(ErrOccupied))

			env.tick(1)
			Expect(env.m.Chests()).To(HaveLen(1))
			Expect(env.m.IsDeathChest(keyAt(4, 64, -3))).To(BeTrue())
		})

		It("leaves no task behind once a chest is broken", func() {
			Expect(env.m.Create(request(at(0, 64, 0), items("a")...))).To(Succeed())
			env.tick(1)
			Expect(env.sched.Pending()).To(Equal(11))

			Expect(env.m.Break(keyAt(0, 64, 0))).To(Succeed())
			Expect(env.sched.Pending()).To(BeZero())
		})

		It("treats a second break as a no-op", func() {
			Expect(env.m.Create(request(at(0, 64, 0), items("a", "b")...))).To(Succeed())
			env.tick(3)

			Expect(env.m.Break(keyAt(0, 64, 0))).To(Succeed())
			drops, sounds := len(env.world.drops), env.world.sounds
			Expect(env.m.Break(keyAt(0, 64, 0))).To(Succeed())
			Expect(env.world.drops).To(HaveLen(drops))
			Expect(env.world.sounds).To(Equal(sounds))
			Expect(env.bcast.messages()).To(HaveLen(2))
		})

		It("rolls back everything when the chest cannot be placed", func() {
			env.world.placeErr = errBoom
			Expect(env.m.Create(request(at(0, 64, 0), items("a")...))).To(Succeed())
			env.tick(10)

			Expect(env.m.ActiveCount()).To(BeZero())
			Expect(env.m.PendingCount()).To(BeZero())
			Expect(env.m.Holograms().ActiveCount()).To(BeZero())
			Expect(env.sched.Pending()).To(BeZero())
		})

		It("breaks after the configured time", func() {
			Expect(env.m.Create(request(at(0, 64, 0), items("a")...))).To(Succeed())
			env.tick(200)
			Expect(env.m.IsDeathChest(keyAt(0, 64, 0))).To(BeTrue())
			env.tick(1)
			Expect(env.m.IsDeathChest(keyAt(0, 64, 0))).To(BeFalse())
		})
	})

	Context("with a falling animation", func() {
		BeforeEach(func() {
			env = newTestEnv(GinkgoT(), func(c *Config) { c.Falling.Enabled = true })
		})

		It("places a chest that never lands exactly once, at the timeout", func() {
			Expect(env.m.Create(request(at(0, 64, 0), items("a")...))).To(Succeed())
			env.tick(202)

			Expect(env.world.placed).To(HaveLen(1))
			Expect(env.m.IsDeathChest(keyAt(0, 64, 0))).To(BeTrue())

			env.tick(50)
			Expect(env.world.placed).To(HaveLen(1))
		})

		It("places the chest when it reaches its target", func() {
			Expect(env.m.Create(request(at(0, 64, 0), items("a")...))).To(Succeed())
			env.tick(1)
			Expect(env.world.falling).To(HaveLen(1))

			env.world.falling[0].set(FallState{Valid: true, Position: mgl64.Vec3{0.5, 65, 0.5}})
			env.tick(1)
			Expect(env.m.IsDeathChest(keyAt(0, 64, 0))).To(BeTrue())
			Expect(env.world.falling[0].removals()).To(Equal(1))
		})

		It("empties every map on shutdown", func() {
			for x := 0; x < 3; x++ {
				Expect(env.m.Create(request(at(float64(x), 64, 0), items("a")...))).To(Succeed())
				env.tick(1)
				for _, f := range env.world.falling {
					f.set(FallState{Valid: false})
				}
				env.tick(1)
			}
			Expect(env.m.ActiveCount()).To(Equal(3))

			Expect(env.m.Create(request(at(9, 64, 9), items("a")...))).To(Succeed())
			env.tick(1)
			Expect(env.m.PendingCount()).To(Equal(1))

			report := env.m.Shutdown()
			Expect(report.Attempts).To(Equal(4))
			Expect(report.Errors).To(BeEmpty())
			Expect(env.m.ActiveCount()).To(BeZero())
			Expect(env.m.PendingCount()).To(BeZero())
			Expect(env.m.Holograms().ActiveCount()).To(BeZero())
			Expect(env.sched.Pending()).To(BeZero())
		})
	})
})
