package lv_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nusim/internal/dynamo"
	"github.com/san-kum/nusim/internal/integrators"
	"github.com/san-kum/nusim/internal/lv"
	"github.com/san-kum/nusim/internal/osc"
	"github.com/san-kum/nusim/internal/storage"
	"github.com/san-kum/nusim/internal/su"
	"github.com/san-kum/nusim/internal/units"
)

type fakeTarget struct {
	fail   bool
	params *lv.Parameters
	op     *su.Vector
	power  int
}

func (f *fakeTarget) SetFromParameters(p lv.Parameters) error {
	if f.fail {
		return &lv.ConfigError{Op: "set"}
	}
	f.params = &p
	return nil
}

func (f *fakeTarget) SetFromOperator(op su.Vector) error {
	if f.fail {
		return &lv.ConfigError{Op: "set"}
	}
	f.op = &op
	return nil
}

func (f *fakeTarget) SetEnergyPower(n int) { f.power = n }

var _ = Describe("Batch", func() {
	var (
		targets []*fakeTarget
		batch   lv.Batch
	)

	BeforeEach(func() {
		targets = make([]*fakeTarget, 5)
		batch = make(lv.Batch, 5)
		for i := range targets {
			targets[i] = &fakeTarget{fail: i == 2, power: 1}
			batch[i] = targets[i]
		}
	})

	It("stops at the failing instance when setting couplings", func() {
		err := batch.SetFromComponents(1, 2, 3, 4, units.EV)
		Expect(err).To(MatchError(lv.ErrNotConfigured))
		Expect(err.Error()).To(ContainSubstring("instance 2"))

		for i, tg := range targets {
			if i < 2 {
				Expect(tg.params).NotTo(BeNil(), fmt.Sprintf("instance %d", i))
				Expect(*tg.params).To(Equal(lv.FromComponents(1, 2, 3, 4, units.EV)))
			} else {
				Expect(tg.params).To(BeNil(), fmt.Sprintf("instance %d", i))
			}
		}
	})

	It("stops at the failing instance when setting an operator", func() {
		err := batch.SetFromOperator(su.Identity(3))
		Expect(err).To(MatchError(lv.ErrNotConfigured))
		Expect(targets[0].op).NotTo(BeNil())
		Expect(targets[1].op).NotTo(BeNil())
		Expect(targets[2].op).To(BeNil())
		Expect(targets[3].op).To(BeNil())
		Expect(targets[4].op).To(BeNil())
	})

	It("sets the energy power everywhere", func() {
		batch.SetEnergyPower(3)
		for _, tg := range targets {
			Expect(tg.power).To(Equal(3))
		}
	})

	It("accepts systems", func() {
		s1 := newSystem([]float64{units.GeV}, osc.Neutrino)
		s2 := newSystem([]float64{units.GeV}, osc.Neutrino)
		b := lv.Batch{s1, s2}
		Expect(b.SetFromComponents(1, 0, 0, 1, 1e-23)).To(Succeed())
		b.SetEnergyPower(2)
		for _, s := range []*lv.System{s1, s2} {
			Expect(s.Status()).To(Equal(lv.Ready))
			Expect(s.EnergyPower()).To(Equal(2))
		}
	})

	It("forwards dimension errors from a system", func() {
		b := lv.Batch{newSystem([]float64{units.GeV}, osc.Neutrino)}
		Expect(b.SetFromOperator(su.Identity(2))).To(MatchError(su.ErrDimension))
	})
})

var _ = Describe("Atmospheric", func() {
	var atm *lv.Atmospheric
	cosz := []float64{-1, -0.5, 0, 0.5}

	BeforeEach(func() {
		var err error
		atm, err = lv.NewAtmospheric(cosz, []float64{units.GeV, 5 * units.GeV}, 3, osc.Both)
		Expect(err).NotTo(HaveOccurred())
		Expect(atm.SetInitialFlavor([]float64{0, 1, 0})).To(Succeed())
	})

	newRK4 := func() dynamo.Integrator { return integrators.NewRK4() }
	steps := func(bin int, L float64) osc.Run { return osc.Run{Dt: L / 20} }

	It("rejects invalid bins", func() {
		_, err := lv.NewAtmospheric(nil, []float64{units.GeV}, 3, osc.Neutrino)
		Expect(err).To(HaveOccurred())
		_, err = lv.NewAtmospheric([]float64{1.5}, []float64{units.GeV}, 3, osc.Neutrino)
		Expect(err).To(HaveOccurred())
	})

	It("orders baselines by zenith", func() {
		Expect(atm.Len()).To(Equal(4))
		for i := 1; i < atm.Len(); i++ {
			Expect(atm.Baseline(i)).To(BeNumerically("<", atm.Baseline(i-1)))
		}
		Expect(atm.Baseline(0)).To(BeNumerically("~", (2*6371+22)*units.Km, units.Km*1e-6))
	})

	It("configures every bin", func() {
		Expect(atm.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
		atm.SetEnergyPower(2)
		for _, s := range atm.Systems() {
			Expect(s.Status()).To(Equal(lv.Ready))
			Expect(s.EnergyPower()).To(Equal(2))
		}
	})

	It("invalidates every bin", func() {
		Expect(atm.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
		Expect(atm.SetMixingAngle(0, 1, 0.5)).To(Succeed())
		for _, s := range atm.Systems() {
			Expect(s.Status()).To(Equal(lv.NotReady))
			Expect(s.Params().MixingAngle(0, 1)).To(Equal(0.5))
		}
		Expect(atm.SetCPPhase(5, 6, 0)).To(MatchError(su.ErrIndex))
	})

	It("evolves all bins in parallel", func() {
		Expect(atm.SetFromComponents(1, 0, 0.5, 0, 1e-23)).To(Succeed())
		results, err := atm.Evolve(context.Background(), newRK4, steps)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for i, s := range atm.Systems() {
			Expect(results[i].StepsTaken).To(Equal(20))
			Expect(s.Time()).To(BeNumerically("~", atm.Baseline(i), atm.Baseline(i)*1e-9))

			var total float64
			for flv := 0; flv < 3; flv++ {
				p, err := s.EvalFlavorAtNode(flv, 1, 1)
				Expect(err).NotTo(HaveOccurred())
				total += p
			}
			Expect(total).To(BeNumerically("~", 1, 1e-9))
		}
	})

	It("reports the failing bin", func() {
		Expect(atm.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
		Expect(atm.System(1).SetCPPhase(0, 2, 0.3)).To(Succeed())

		_, err := atm.Evolve(context.Background(), newRK4, steps)
		Expect(err).To(MatchError(lv.ErrNotConfigured))
		Expect(err.Error()).To(ContainSubstring("bin 1"))
	})

	It("stops on a canceled context", func() {
		Expect(atm.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := atm.Evolve(ctx, newRK4, steps)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("round trips through an archive", func() {
		Expect(atm.SetFromComponents(0.5, 0.25, 0, 1, 1e-23)).To(Succeed())
		ar := storage.NewArchive()
		atm.WriteArchive(ar)

		r, err := lv.LoadAtmospheric(ar)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.CosZeniths()).To(Equal(cosz))
		for i, s := range r.Systems() {
			Expect(s.Status()).To(Equal(lv.Ready))
			Expect(s.Perturbation().Operator().Equal(atm.System(i).Perturbation().Operator())).To(BeTrue())
		}
	})

	DescribeTable("rejects archived zenith grids that NewAtmospheric would reject",
		func(grid []float64) {
			ar := storage.NewArchive()
			atm.WriteArchive(ar)
			ar.Group("/").SetDataset("costh", grid)

			r, err := lv.LoadAtmospheric(ar)
			Expect(err).To(HaveOccurred())
			Expect(r).To(BeNil())
		},
		Entry("empty", []float64{}),
		Entry("above one", []float64{-0.5, 1.5}),
		Entry("below minus one", []float64{-1.01}),
	)
})
