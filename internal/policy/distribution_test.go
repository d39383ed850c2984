package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/policy"
	"github.com/cyclus-sim/cyclus/internal/rng"
)

func TestFixedSamplesConstant(t *testing.T) {
	src := rng.New(1)
	d := policy.Fixed{Value: 42}
	require.NoError(t, d.Validate())
	require.Equal(t, 42.0, d.Sample(src))
}

func TestUniformValidateRejectsInvertedRange(t *testing.T) {
	d := policy.Uniform{Min: 5, Max: 1}
	require.Error(t, d.Validate())
}

func TestUniformSampleWithinBounds(t *testing.T) {
	src := rng.New(1)
	d := policy.Uniform{Min: 2, Max: 4}
	require.NoError(t, d.Validate())
	for i := 0; i < 50; i++ {
		v := d.Sample(src)
		require.GreaterOrEqual(t, v, 2.0)
		require.LessOrEqual(t, v, 4.0)
	}
}

func TestNormalValidateRejectsNegativeSigma(t *testing.T) {
	d := policy.Normal{Mu: 0, Sigma: -1, Min: -5, Max: 5}
	require.Error(t, d.Validate())
}

func TestNormalSampleRespectsTruncation(t *testing.T) {
	src := rng.New(1)
	d := policy.Normal{Mu: 0, Sigma: 10, Min: -1, Max: 1}
	require.NoError(t, d.Validate())
	for i := 0; i < 50; i++ {
		v := d.Sample(src)
		require.GreaterOrEqual(t, v, -1.0)
		require.LessOrEqual(t, v, 1.0)
	}
}

func TestBinomialValidateRejectsOutOfRangeProbability(t *testing.T) {
	d := policy.Binomial{N: 10, P: 1.5}
	require.Error(t, d.Validate())
}

func TestBinomialValidateRejectsNonPositiveN(t *testing.T) {
	d := policy.Binomial{N: 0, P: 0.5}
	require.Error(t, d.Validate())
}

func TestBinomialSampleCappedAtN(t *testing.T) {
	src := rng.New(1)
	d := policy.Binomial{N: 3, P: 0} // never succeeds, always caps at N
	require.NoError(t, d.Validate())
	require.Equal(t, 3.0, d.Sample(src))
}

func TestFixedWithDisruptionValidateRejectsOutOfRangeProbability(t *testing.T) {
	d := policy.FixedWithDisruption{Nominal: 1, Disrupted: 2, DisruptionProb: 2}
	require.Error(t, d.Validate())
}

func TestFixedWithDisruptionSamplesNominalWhenNeverDisrupted(t *testing.T) {
	src := rng.New(1)
	d := policy.FixedWithDisruption{Nominal: 1, Disrupted: 99, DisruptionProb: 0}
	require.NoError(t, d.Validate())
	require.Equal(t, 1.0, d.Sample(src))
}
