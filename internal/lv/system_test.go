package lv_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"

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

func newSystem(energies []float64, nt osc.NeutrinoType, opts ...osc.Option) *lv.System {
	s, err := lv.NewSystem(energies, 3, nt, opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

// noMixing has zero angles and Δm²_21 = 0, so H0 commutes with any
// generator living in the (0,1) block.
func noMixing() su.Params {
	p := su.NewParams(3)
	Expect(p.SetEnergyDifference(2, 0.00247)).To(Succeed())
	return p
}

var _ = Describe("System", func() {
	var s *lv.System

	BeforeEach(func() {
		s = newSystem([]float64{units.GeV, 10 * units.GeV}, osc.Both)
	})

	Describe("construction", func() {
		It("starts NotReady with energy power 1", func() {
			Expect(s.Status()).To(Equal(lv.NotReady))
			Expect(s.EnergyPower()).To(Equal(1))
			Expect(s.HasParameters()).To(BeFalse())
		})

		It("needs three flavors", func() {
			_, err := lv.NewSystem([]float64{units.GeV}, 2, osc.Neutrino)
			Expect(err).To(MatchError(osc.ErrFlavors))
		})

		It("rejects an empty grid", func() {
			_, err := lv.NewSystem(nil, 3, osc.Neutrino)
			Expect(err).To(MatchError(osc.ErrNoEnergies))
		})
	})

	Describe("setters", func() {
		It("moves to Ready and records the couplings", func() {
			unit := 1e-23 * units.EV
			Expect(s.SetFromComponents(1, 2, 3, 4, unit)).To(Succeed())
			Expect(s.Status()).To(Equal(lv.Ready))
			p, ok := s.Perturbation().Parameters()
			Expect(ok).To(BeTrue())
			Expect(p.CEMu).To(Equal(complex(1*unit, 2*unit)))
			Expect(p.CMuTau).To(Equal(complex(3*unit, 4*unit)))
		})

		It("produces the same operator from components and from the matrix", func() {
			a := newSystem([]float64{units.GeV}, osc.Neutrino)
			b := newSystem([]float64{units.GeV}, osc.Neutrino)

			Expect(a.SetFromComponents(0.3, -1.1, 2.5, 0.7, 1e-22*units.EV)).To(Succeed())
			m, err := lv.FromComponents(0.3, -1.1, 2.5, 0.7, 1e-22*units.EV).Matrix(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.SetFromMatrix(m)).To(Succeed())

			pa, _ := a.Perturbation().Parameters()
			pb, _ := b.Perturbation().Parameters()
			Expect(pb).To(Equal(pa))
			Expect(b.Perturbation().Operator().Equal(a.Perturbation().Operator())).To(BeTrue())
		})

		It("places the couplings at (1,0) and (2,1) with conjugates mirrored", func() {
			m, err := lv.Parameters{CEMu: complex(1, 2), CMuTau: complex(3, -4)}.Matrix(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(m).To(HaveLen(4))
			Expect(m[1][0]).To(Equal(complex(1, 2)))
			Expect(m[0][1]).To(Equal(complex(1, -2)))
			Expect(m[2][1]).To(Equal(complex(3, -4)))
			Expect(m[1][2]).To(Equal(complex(3, 4)))
			Expect(m[0][0]).To(BeZero())
			Expect(m[3][3]).To(BeZero())
		})

		It("rejects a non-Hermitian matrix", func() {
			m := [][]complex128{{0, 1, 0}, {2, 0, 0}, {0, 0, 0}}
			Expect(s.SetFromMatrix(m)).To(MatchError(su.ErrNotHermitian))
			Expect(s.Status()).To(Equal(lv.NotReady))
		})

		It("rejects an operator of the wrong dimension", func() {
			Expect(s.SetFromOperator(su.Identity(4))).To(MatchError(su.ErrDimension))
			Expect(s.Status()).To(Equal(lv.NotReady))
		})

		It("drops the couplings when set from an operator", func() {
			Expect(s.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
			op, err := su.FromMatrix([][]complex128{{1, 0, 0}, {0, -1, 0}, {0, 0, 0}})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.SetFromOperator(op)).To(Succeed())
			Expect(s.Status()).To(Equal(lv.Ready))
			Expect(s.HasParameters()).To(BeFalse())
		})

		It("is idempotent", func() {
			Expect(s.SetFromComponents(1, 2, 0.5, 0, 1e-23)).To(Succeed())
			Expect(s.Refresh(3e9)).To(Succeed())
			once, err := s.Perturbation().Cached(1)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.SetFromComponents(1, 2, 0.5, 0, 1e-23)).To(Succeed())
			Expect(s.SetFromComponents(1, 2, 0.5, 0, 1e-23)).To(Succeed())
			Expect(s.Refresh(3e9)).To(Succeed())
			twice, err := s.Perturbation().Cached(1)
			Expect(err).NotTo(HaveOccurred())

			Expect(twice.Equal(once)).To(BeTrue())
		})
	})

	Describe("invalidation", func() {
		BeforeEach(func() {
			Expect(s.SetFromComponents(1, 2, 3, 4, 1e-23)).To(Succeed())
			Expect(s.Refresh(0)).To(Succeed())
		})

		It("follows a mixing angle change", func() {
			Expect(s.SetMixingAngle(0, 1, 0.6)).To(Succeed())
			Expect(s.Status()).To(Equal(lv.NotReady))

			err := s.Refresh(0)
			Expect(err).To(MatchError(lv.ErrNotConfigured))
			var cfgErr *lv.ConfigError
			Expect(errors.As(err, &cfgErr)).To(BeTrue())
			Expect(cfgErr.Op).To(Equal("refresh"))

			_, err = s.Hamiltonian(0, 0)
			Expect(err).To(MatchError(lv.ErrNotConfigured))
		})

		It("follows a CP phase change", func() {
			Expect(s.SetCPPhase(0, 2, 1.0)).To(Succeed())
			Expect(s.Status()).To(Equal(lv.NotReady))
			Expect(s.Refresh(0)).To(MatchError(lv.ErrNotConfigured))
		})

		It("happens even when the engine rejects the change", func() {
			Expect(s.SetCPPhase(2, 0, 1.0)).To(MatchError(su.ErrIndex))
			Expect(s.Status()).To(Equal(lv.NotReady))
		})

		It("is cleared by setting again", func() {
			Expect(s.SetMixingAngle(1, 2, 0.7)).To(Succeed())
			Expect(s.SetFromComponents(1, 2, 3, 4, 1e-23)).To(Succeed())
			Expect(s.Status()).To(Equal(lv.Ready))
			Expect(s.Refresh(0)).To(Succeed())
		})

		It("keeps the couplings for Reset", func() {
			Expect(s.SetMixingAngle(1, 2, 0.7)).To(Succeed())
			Expect(s.Reset()).To(Succeed())
			Expect(s.Status()).To(Equal(lv.Ready))

			fresh := newSystem([]float64{units.GeV, 10 * units.GeV}, osc.Both)
			Expect(fresh.SetMixingAngle(1, 2, 0.7)).To(Succeed())
			Expect(fresh.SetFromComponents(1, 2, 3, 4, 1e-23)).To(Succeed())
			Expect(s.Perturbation().Operator().Equal(fresh.Perturbation().Operator())).To(BeTrue())
		})

		It("ignores mass splittings, initial states and energy power", func() {
			Expect(s.SetSquareMassDifference(2, 0.0025)).To(Succeed())
			Expect(s.SetInitialFlavor([]float64{0, 1, 0})).To(Succeed())
			s.SetEnergyPower(2)
			Expect(s.Status()).To(Equal(lv.Ready))
			_, err := s.Hamiltonian(1, 1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("aborts a propagation at the first step", func() {
			Expect(s.SetInitialFlavor([]float64{0, 1, 0})).To(Succeed())
			Expect(s.SetMixingAngle(0, 1, 0.6)).To(Succeed())

			_, err := s.Propagate(context.Background(), integrators.NewRK4(), 100*units.Km, osc.Run{Dt: 10 * units.Km})
			Expect(err).To(MatchError(lv.ErrNotConfigured))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(0))
			Expect(s.Time()).To(BeZero())
		})
	})

	Describe("queries", func() {
		It("fail before any set", func() {
			_, err := s.Hamiltonian(0, 0)
			Expect(err).To(MatchError(lv.ErrNotConfigured))
		})

		It("fail between set and refresh", func() {
			Expect(s.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
			_, err := s.Hamiltonian(0, 0)
			Expect(err).To(MatchError(lv.ErrCacheStale))

			Expect(s.Refresh(0)).To(Succeed())
			_, err = s.Hamiltonian(0, 0)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reject an unknown node", func() {
			Expect(s.SetFromComponents(1, 0, 0, 0, 1e-23)).To(Succeed())
			Expect(s.Refresh(0)).To(Succeed())
			_, err := s.Perturbation().Term(5, units.GeV, false)
			Expect(err).To(MatchError(su.ErrIndex))
		})

		It("flip sign for the antineutrino channel", func() {
			Expect(s.SetFromComponents(0.4, -0.2, 1.3, 0.9, 1e-23)).To(Succeed())
			Expect(s.Refresh(7e9)).To(Succeed())

			for ie := 0; ie < 2; ie++ {
				nu, err := s.Hamiltonian(ie, 0)
				Expect(err).NotTo(HaveOccurred())
				nubar, err := s.Hamiltonian(ie, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(nu.IsZero()).To(BeFalse())
				Expect(nubar.Equal(nu.Scale(-1))).To(BeTrue())
			}
		})

		It("flip sign for an antineutrino-only system", func() {
			anti := newSystem([]float64{units.GeV}, osc.Antineutrino)
			nu := newSystem([]float64{units.GeV}, osc.Neutrino)
			for _, x := range []*lv.System{anti, nu} {
				Expect(x.SetFromComponents(1, 1, 0, 0, 1e-23)).To(Succeed())
				Expect(x.Refresh(1e9)).To(Succeed())
			}
			ha, err := anti.Hamiltonian(0, 0)
			Expect(err).NotTo(HaveOccurred())
			hn, err := nu.Hamiltonian(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(ha.Equal(hn.Scale(-1))).To(BeTrue())
		})

		It("scale with the energy power", func() {
			Expect(s.SetFromComponents(0.4, -0.2, 1.3, 0.9, 1e-23)).To(Succeed())
			Expect(s.Refresh(2e9)).To(Succeed())
			h1, err := s.Hamiltonian(1, 0)
			Expect(err).NotTo(HaveOccurred())
			before, _ := s.Perturbation().Cached(1)

			s.SetEnergyPower(2)
			h2, err := s.Hamiltonian(1, 0)
			Expect(err).NotTo(HaveOccurred())

			E := s.Energy(1)
			Expect(h2.ApproxEqual(h1.Scale(E), 1e-12*h2.MaxAbs())).To(BeTrue())
			after, _ := s.Perturbation().Cached(1)
			Expect(after.Equal(before)).To(BeTrue())
		})
	})

	Describe("a Hamiltonian commuting with the generator", func() {
		It("leaves the evolved operator unchanged", func() {
			c := newSystem([]float64{units.GeV}, osc.Neutrino, osc.WithParams(noMixing()))
			Expect(c.SetFromComponents(0.1, 0.2, 0, 0, units.EV)).To(Succeed())
			c.SetEnergyPower(1)

			Expect(c.Refresh(0)).To(Succeed())
			at0, err := c.Perturbation().Cached(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(at0.Equal(c.Perturbation().Operator())).To(BeTrue())

			Expect(c.Refresh(10)).To(Succeed())
			at10, err := c.Perturbation().Cached(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(at10.ApproxEqual(at0, 1e-15)).To(BeTrue())
		})
	})

	Describe("a non-commuting Hamiltonian", func() {
		It("rotates the off-diagonal phases", func() {
			c := newSystem([]float64{units.GeV}, osc.Neutrino, osc.WithParams(noMixing()))
			Expect(c.SetFromComponents(0, 0, 1, 0, units.EV)).To(Succeed())
			Expect(c.Refresh(0)).To(Succeed())
			at0, _ := c.Perturbation().Cached(0)

			x := 1e12
			Expect(c.Refresh(x)).To(Succeed())
			atx, _ := c.Perturbation().Cached(0)

			phase := -0.00247 / (2 * units.GeV) * x
			want := complex(math.Cos(phase), math.Sin(phase))
			Expect(real(atx.At(1, 2))).To(BeNumerically("~", real(want), 1e-12))
			Expect(imag(atx.At(1, 2))).To(BeNumerically("~", imag(want), 1e-12))
			Expect(atx.Equal(at0)).To(BeFalse())
		})
	})

	Describe("propagation", func() {
		It("changes the oscillation probabilities", func() {
			E := []float64{units.GeV}
			plain := newSystem(E, osc.Neutrino)
			pert := newSystem(E, osc.Neutrino)
			Expect(pert.SetFromComponents(1, 0, 0, 0, 1e-22)).To(Succeed())

			L := 1000 * units.Km
			for _, x := range []*lv.System{plain, pert} {
				Expect(x.SetInitialFlavor([]float64{0, 1, 0})).To(Succeed())
				_, err := x.Propagate(context.Background(), integrators.NewRK4(), L, osc.Run{Dt: L / 100})
				Expect(err).NotTo(HaveOccurred())
			}

			var total float64
			for flv := 0; flv < 3; flv++ {
				p, err := pert.EvalFlavorAtNode(flv, 0, 0)
				Expect(err).NotTo(HaveOccurred())
				total += p
			}
			Expect(total).To(BeNumerically("~", 1, 1e-9))

			pe, _ := pert.EvalFlavorAtNode(0, 0, 0)
			qe, _ := plain.EvalFlavorAtNode(0, 0, 0)
			Expect(math.Abs(pe - qe)).To(BeNumerically(">", 1e-10))
		})

		It("meets the tolerance with adaptive steps", func() {
			E := []float64{0.5 * units.GeV}
			L := 8000 * units.Km
			adaptive := newSystem(E, osc.Neutrino)
			fixed := newSystem(E, osc.Neutrino)
			for _, x := range []*lv.System{adaptive, fixed} {
				Expect(x.SetFromComponents(1, 0, 0, 0, 1e-22)).To(Succeed())
				Expect(x.SetInitialFlavor([]float64{0, 1, 0})).To(Succeed())
			}

			res, err := adaptive.Propagate(context.Background(), integrators.NewRK45(), L,
				osc.Run{Dt: L, Adaptive: true, Tolerance: 1e-9, MinDt: L * 1e-12})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(BeNumerically(">", 1))
			Expect(adaptive.Time()).To(BeNumerically("~", L, L*1e-12))

			_, err = fixed.Propagate(context.Background(), integrators.NewRK4(), L, osc.Run{Dt: L / 20000})
			Expect(err).NotTo(HaveOccurred())

			for flv := 0; flv < 3; flv++ {
				got, err := adaptive.EvalFlavorAtNode(flv, 0, 0)
				Expect(err).NotTo(HaveOccurred())
				want, _ := fixed.EvalFlavorAtNode(flv, 0, 0)
				Expect(got).To(BeNumerically("~", want, 1e-6), "flavor %d", flv)
			}
		})
	})

	Describe("Clone", func() {
		It("is independent", func() {
			Expect(s.SetFromComponents(1, 2, 3, 4, 1e-23)).To(Succeed())
			c := s.Clone()
			Expect(c.SetMixingAngle(0, 1, 0.1)).To(Succeed())
			Expect(c.Status()).To(Equal(lv.NotReady))
			Expect(s.Status()).To(Equal(lv.Ready))
			Expect(s.Params().MixingAngle(0, 1)).NotTo(Equal(0.1))
		})

		It("carries the extension", func() {
			Expect(s.SetFromComponents(1, 2, 3, 4, 1e-23)).To(Succeed())
			Expect(s.SetInitialFlavor([]float64{1, 0, 0})).To(Succeed())
			c := s.Clone()
			Expect(c.SetMixingAngle(0, 1, 0.1)).To(Succeed())
			_, err := c.Propagate(context.Background(), integrators.NewEuler(), 10*units.Km, osc.Run{Dt: units.Km})
			Expect(err).To(MatchError(lv.ErrNotConfigured))
			_, err = s.Propagate(context.Background(), integrators.NewEuler(), 10*units.Km, osc.Run{Dt: units.Km})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("archive", func() {
		It("round trips the couplings and rotates again on load", func() {
			Expect(s.SetFromComponents(0.1, 1.0/3.0, -2, 0.25, 1e-23)).To(Succeed())
			Expect(s.SetInitialFlavor([]float64{0, 1, 0})).To(Succeed())

			a := storage.NewArchive()
			s.WriteArchive(a, "/")
			path := filepath.Join(GinkgoT().TempDir(), "lv.yaml")
			Expect(a.Save(path)).To(Succeed())

			ps, _ := s.Perturbation().Parameters()
			g, err := a.Lookup("/c_values")
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Attribute("c_e_mu_imag")).To(Equal(imag(ps.CEMu)))
			Expect(g.Attribute("c_mu_tau_real")).To(Equal(real(ps.CMuTau)))

			loaded, err := storage.LoadArchive(path)
			Expect(err).NotTo(HaveOccurred())
			r, err := lv.LoadSystem(loaded, "/")
			Expect(err).NotTo(HaveOccurred())

			Expect(r.Status()).To(Equal(lv.Ready))
			pr, _ := r.Perturbation().Parameters()
			Expect(pr).To(Equal(ps))
			Expect(r.Perturbation().Operator().Equal(s.Perturbation().Operator())).To(BeTrue())
			Expect(r.Type()).To(Equal(osc.Both))
		})

		It("leaves a system set from an operator NotReady", func() {
			Expect(s.SetFromOperator(su.Diagonal([]float64{1, -1, 0}))).To(Succeed())
			a := storage.NewArchive()
			s.WriteArchive(a, "/run")

			_, err := a.Lookup("/run/c_values")
			Expect(err).To(MatchError(storage.ErrNotFound))

			r, err := lv.LoadSystem(a, "/run")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status()).To(Equal(lv.NotReady))
		})
	})

	Describe("DumpProbabilities", func() {
		It("prints zero for the antineutrino column of a neutrino system", func() {
			n := newSystem([]float64{units.GeV}, osc.Neutrino, osc.WithParams(noMixing()))
			Expect(n.SetInitialFlavor([]float64{1, 0, 0})).To(Succeed())
			var buf bytes.Buffer
			Expect(n.DumpProbabilities(&buf)).To(Succeed())
			Expect(buf.String()).To(Equal("1e+09 1 0 0 0 0 0\n"))
		})

		It("prints zero for the neutrino column of an antineutrino system", func() {
			n := newSystem([]float64{units.GeV}, osc.Antineutrino, osc.WithParams(noMixing()))
			Expect(n.SetInitialFlavor([]float64{1, 0, 0})).To(Succeed())
			var buf bytes.Buffer
			Expect(n.DumpProbabilities(&buf)).To(Succeed())
			Expect(buf.String()).To(Equal("1e+09 0 1 0 0 0 0\n"))
		})

		It("prints both channels", func() {
			n := newSystem([]float64{units.GeV, 2 * units.GeV}, osc.Both, osc.WithParams(noMixing()))
			Expect(n.SetInitialState([][][]float64{
				{{0, 1, 0}, {0, 0, 1}},
				{{1, 0, 0}, {0, 1, 0}},
			})).To(Succeed())
			var buf bytes.Buffer
			Expect(n.DumpProbabilities(&buf)).To(Succeed())
			Expect(buf.String()).To(Equal("1e+09 0 0 1 0 0 1\n2e+09 1 0 0 1 0 0\n"))
		})

		It("fails without an initial state", func() {
			var buf bytes.Buffer
			Expect(s.DumpProbabilities(&buf)).To(MatchError(osc.ErrNoInitialState))
		})
	})
})
