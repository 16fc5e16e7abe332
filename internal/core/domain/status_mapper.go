package domain

type conditionalEntry struct {
	required ChargeStatus
	target   ChargeStatus
}

// StatusMapper translates one gateway's raw statuses. It is immutable after
// Build and safe for concurrent reads.
type StatusMapper struct {
	ignored     map[string]struct{}
	conditional map[string][]conditionalEntry
	direct      map[string]InterpretedStatus
	deferred    map[string]DeferredResolution
}

// StatusMapperBuilder collects entries for a StatusMapper.
type StatusMapperBuilder struct {
	m *StatusMapper
}

func NewStatusMapperBuilder() *StatusMapperBuilder {
	return &StatusMapperBuilder{m: &StatusMapper{
		ignored:     map[string]struct{}{},
		conditional: map[string][]conditionalEntry{},
		direct:      map[string]InterpretedStatus{},
		deferred:    map[string]DeferredResolution{},
	}}
}

func (b *StatusMapperBuilder) Ignore(raw ...string) *StatusMapperBuilder {
	for _, r := range raw {
		b.m.ignored[r] = struct{}{}
	}
	return b
}

func (b *StatusMapperBuilder) MapCharge(raw string, target ChargeStatus) *StatusMapperBuilder {
	b.m.direct[raw] = ChargeStatusResult(target)
	return b
}

// MapChargeWhen maps raw to target only when the charge is currently in required.
func (b *StatusMapperBuilder) MapChargeWhen(raw string, required, target ChargeStatus) *StatusMapperBuilder {
	b.m.conditional[raw] = append(b.m.conditional[raw], conditionalEntry{required: required, target: target})
	return b
}

func (b *StatusMapperBuilder) MapRefund(raw string, target RefundStatus) *StatusMapperBuilder {
	b.m.direct[raw] = RefundStatusResult(target)
	return b
}

func (b *StatusMapperBuilder) Defer(raw string, resolution DeferredResolution) *StatusMapperBuilder {
	b.m.deferred[raw] = resolution
	return b
}

// Build returns the mapper. The builder must not be used afterwards.
func (b *StatusMapperBuilder) Build() *StatusMapper {
	m := b.m
	b.m = nil
	return m
}

// From interprets raw without knowledge of the charge's current status.
func (m *StatusMapper) From(raw string) InterpretedStatus {
	return m.lookup(raw, "", false)
}

// FromCurrent interprets raw for a charge currently in current.
func (m *StatusMapper) FromCurrent(raw string, current ChargeStatus) InterpretedStatus {
	return m.lookup(raw, current, true)
}

func (m *StatusMapper) lookup(raw string, current ChargeStatus, hasCurrent bool) InterpretedStatus {
	if _, ok := m.ignored[raw]; ok {
		return Ignored
	}
	if entries, ok := m.conditional[raw]; ok {
		if hasCurrent {
			for _, e := range entries {
				if e.required == current {
					return ChargeStatusResult(e.target)
				}
			}
		}
		return Unknown
	}
	if s, ok := m.direct[raw]; ok {
		return s
	}
	if d, ok := m.deferred[raw]; ok {
		return DeferredResult(d)
	}
	return Unknown
}
