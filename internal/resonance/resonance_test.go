package resonance_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tlazar/geoflux/internal/energy"
	"github.com/tlazar/geoflux/internal/resonance"
)

func flatState() *energy.State {
	return energy.NewState(energy.CoreSubsystems(), map[energy.Subsystem]float64{
		energy.Solar:       100,
		energy.Magnetic:    100,
		energy.Atmospheric: 100,
		energy.Oceanic:     100,
	})
}

var _ = Describe("Model", func() {
	Describe("New", func() {
		It("rejects non-positive periods", func() {
			periods := resonance.DefaultPeriods()
			periods[energy.Solar] = 0
			_, err := resonance.New(periods, 0.02)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a negative weight", func() {
			_, err := resonance.New(resonance.DefaultPeriods(), -0.01)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Term", func() {
		var m *resonance.Model

		BeforeEach(func() {
			var err error
			m, err = resonance.New(resonance.DefaultPeriods(), 0.02)
			Expect(err).NotTo(HaveOccurred())
		})

		It("is zero when the subsystem holds no energy", func() {
			s := flatState()
			s.SetValue(0, 0)
			Expect(m.Term(energy.Solar, s, 5)).To(BeZero())
		})

		It("ignores partners with no energy", func() {
			s := flatState()
			full := m.Term(energy.Solar, s, 0)

			drained := flatState()
			drained.SetValue(3, 0) // oceanic
			partial := m.Term(energy.Solar, drained, 0)

			// At t=0 every phase is zero, so each partner contributes
			// sqrt(100*100) = 100 to the sum.
			Expect(full).To(BeNumerically("~", 0.02*300, 1e-9))
			Expect(partial).To(BeNumerically("~", 0.02*200, 1e-9))
		})

		It("is zero at zero weight", func() {
			zm, err := resonance.New(resonance.DefaultPeriods(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(zm.Term(energy.Solar, flatState(), 7.3)).To(BeZero())
		})

		It("goes negative when phases oppose", func() {
			// Two subsystems with periods 2 and 4 are in antiphase at t=1:
			// phases pi and pi/2 differ by pi/2; pick t where cos < 0
			// dominates by isolating a single pair.
			periods := map[energy.Subsystem]float64{
				energy.Solar:    2,
				energy.Magnetic: 4,
			}
			pair, err := resonance.New(periods, 0.02)
			Expect(err).NotTo(HaveOccurred())

			s := energy.NewState([]energy.Subsystem{energy.Solar, energy.Magnetic}, map[energy.Subsystem]float64{
				energy.Solar:    100,
				energy.Magnetic: 100,
			})
			// Relative phase at t=2: 2*pi - pi = pi, fully destructive.
			Expect(pair.Term(energy.Solar, s, 2)).To(BeNumerically("<", 0))
			// Relative phase at t=4: 4*pi - 2*pi = 2*pi, fully constructive.
			Expect(pair.Term(energy.Solar, s, 4)).To(BeNumerically(">", 0))
		})

		It("scales with sqrt of the pair energies", func() {
			s := flatState()
			base := m.Term(energy.Solar, s, 0)

			quadrupled := flatState()
			for i, sub := range quadrupled.Order() {
				quadrupled.SetValue(i, 4*quadrupled.Get(sub))
			}
			// sqrt(4E_i * 4E_j) = 4*sqrt(E_i*E_j)
			Expect(m.Term(energy.Solar, quadrupled, 0)).To(BeNumerically("~", 4*base, 1e-9))
		})
	})

	Describe("Modulation", func() {
		It("is 1 with no modulators", func() {
			m, err := resonance.New(resonance.DefaultPeriods(), 0.02)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Modulation(123.4)).To(Equal(1.0))
		})

		It("composes modulators multiplicatively", func() {
			lunar := resonance.LunarModulator{}
			debris := resonance.DebrisModulator{Amplitude: 0.03, Tau: 50}
			m, err := resonance.New(resonance.DefaultPeriods(), 0.02, lunar, debris)
			Expect(err).NotTo(HaveOccurred())

			t := 17.5
			Expect(m.Modulation(t)).To(BeNumerically("~", lunar.Multiplier(t)*debris.Multiplier(t), 1e-12))
		})
	})
})

var _ = Describe("Modulators", func() {
	Describe("LunarModulator", func() {
		mod := resonance.LunarModulator{}

		It("is 1 at t=0", func() {
			Expect(mod.Multiplier(0)).To(Equal(1.0))
		})

		It("peaks near 1.1 a quarter sidereal month in", func() {
			Expect(mod.Multiplier(27.3 / 4)).To(BeNumerically("~", 1.1, 0.02))
		})

		It("stays within its amplitude envelope", func() {
			for t := 0.0; t < 500; t += 0.5 {
				v := mod.Multiplier(t)
				Expect(v).To(BeNumerically(">=", 0.85))
				Expect(v).To(BeNumerically("<=", 1.15))
			}
		})
	})

	Describe("PlanetaryModulator", func() {
		It("is maximal at t=0 with zero initial phases", func() {
			mod := resonance.PlanetaryModulator{Bodies: resonance.DefaultBodies()}
			Expect(mod.Multiplier(0)).To(BeNumerically("~", 1.06, 1e-12))
		})

		It("skips bodies with a non-positive period", func() {
			mod := resonance.PlanetaryModulator{Bodies: []resonance.Body{
				{Name: "broken", Amplitude: 10, Period: 0},
			}}
			Expect(mod.Multiplier(3)).To(Equal(1.0))
		})

		It("honors the initial phase offset", func() {
			mod := resonance.PlanetaryModulator{Bodies: []resonance.Body{
				{Name: "x", Amplitude: 0.1, Period: 10, Phase0: math.Pi},
			}}
			Expect(mod.Multiplier(0)).To(BeNumerically("~", 0.9, 1e-12))
		})
	})

	Describe("SolarAMModulator", func() {
		It("defaults its amplitude to 0.05", func() {
			mod := resonance.SolarAMModulator{}
			// Quarter of the 179-unit cycle: primary sine at 1.
			v := mod.Multiplier(179.0 / 4)
			expected := 1 + 0.05*math.Sin(math.Pi/2) + 0.025*math.Sin(2*math.Pi*(179.0/4)/60.0)
			Expect(v).To(BeNumerically("~", expected, 1e-12))
		})

		It("is 1 at t=0", func() {
			Expect(resonance.SolarAMModulator{Amplitude: 0.08}.Multiplier(0)).To(Equal(1.0))
		})
	})

	Describe("DebrisModulator", func() {
		It("starts at 1 and saturates toward 1+amplitude", func() {
			mod := resonance.DebrisModulator{Amplitude: 0.03, Tau: 50}
			Expect(mod.Multiplier(0)).To(Equal(1.0))
			Expect(mod.Multiplier(1e6)).To(BeNumerically("~", 1.03, 1e-9))
		})

		It("rises monotonically", func() {
			mod := resonance.DebrisModulator{Amplitude: 0.03, Tau: 50}
			prev := mod.Multiplier(0)
			for t := 1.0; t < 500; t += 1 {
				v := mod.Multiplier(t)
				Expect(v).To(BeNumerically(">=", prev))
				prev = v
			}
		})

		It("falls back to reference defaults when zero-valued", func() {
			def := resonance.DebrisModulator{}
			explicit := resonance.DebrisModulator{Amplitude: 0.03, Tau: 50}
			Expect(def.Multiplier(33)).To(Equal(explicit.Multiplier(33)))
		})
	})
})
