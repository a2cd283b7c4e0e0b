package ports

//go:generate go run go.uber.org/mock/mockgen -source=sampling.go -destination=mocks/mock_sampling.go -package=mocks

// SamplingPolicy decides from external entropy whether a completed task is
// re-verified. Implementations must be deterministic in their input.
type SamplingPolicy interface {
	ShouldVerify(entropy []byte) (bool, uint64, error)
}
