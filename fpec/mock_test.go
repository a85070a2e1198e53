package fpec

import (
	"fmt"
	"strings"
)

// access is one recorded interaction with the mock.
type access struct {
	kind  byte // 'R', 'W', 'C', 'L' (load), 'S' (store)
	field Field
	addr  uint32
	value uint32
}

func (a access) String() string {
	switch a.kind {
	case 'L', 'S':
		return fmt.Sprintf("%c 0x%08X", a.kind, a.addr)
	case 'W':
		return fmt.Sprintf("W %s=0x%X", a.field, a.value)
	default:
		return fmt.Sprintf("%c %s", a.kind, a.field)
	}
}

// MockFPEC simulates the flash controller at the field level for testing.
type MockFPEC struct {
	values map[Field]uint32
	memory map[uint32]uint32
	log    []access

	// Latency is the number of busy reads that return set after a start
	Latency int

	// Stuck keeps the busy flag set forever once an operation starts
	Stuck bool

	// SuppressEOP completes operations without setting end-of-operation
	SuppressEOP bool

	// WriteProtected completes operations with write-protect-error set
	WriteProtected bool

	// AcceptedKey2 is the second key the mock unlocks on
	AcceptedKey2 uint32

	// CorruptStores flips the low bit of every programmed word
	CorruptStores bool

	// ReadErr fails reads of the given fields
	ReadErr map[Field]error

	// OnBusyPoll runs on every busy read while an operation is in flight
	OnBusyPoll func()

	busyLeft   int
	keyStage   int
	lockedOut  bool
	pendingOp  byte
	pendingAt  uint32
	pendingVal uint32
}

func NewMockFPEC() *MockFPEC {
	return &MockFPEC{
		values:       map[Field]uint32{},
		memory:       map[uint32]uint32{},
		Latency:      3,
		AcceptedKey2: Key2,
	}
}

// Locked puts the control register in the locked state.
func (m *MockFPEC) Locked() *MockFPEC {
	m.values[FieldLock] = 1
	return m
}

func (m *MockFPEC) Read(f Field) (uint32, error) {
	m.log = append(m.log, access{kind: 'R', field: f})
	if err := m.ReadErr[f]; err != nil {
		return 0, err
	}
	if f == FieldBusy && m.pendingOp != 0 {
		if m.OnBusyPoll != nil {
			m.OnBusyPoll()
		}
		if !m.Stuck {
			m.busyLeft--
			if m.busyLeft <= 0 {
				m.complete()
			}
		}
	}
	return m.values[f], nil
}

func (m *MockFPEC) Write(f Field, v uint32) error {
	m.log = append(m.log, access{kind: 'W', field: f, value: v})
	switch f {
	case FieldKey:
		m.key(v)
		return nil
	case FieldPageErase, FieldProgram, FieldStart, FieldAddress:
		if m.values[FieldLock] != 0 {
			return nil
		}
	}

	m.values[f] = v
	if f == FieldStart && v != 0 {
		m.values[FieldStart] = 0
		if m.values[FieldPageErase] != 0 {
			m.begin('E', m.values[FieldAddress], 0)
		}
	}
	return nil
}

func (m *MockFPEC) Clear(f Field) error {
	m.log = append(m.log, access{kind: 'C', field: f})
	m.values[f] = 0
	return nil
}

func (m *MockFPEC) Load32(addr uint32) (uint32, error) {
	m.log = append(m.log, access{kind: 'L', addr: addr})
	if v, ok := m.memory[addr]; ok {
		return v, nil
	}
	return 0xFFFFFFFF, nil
}

func (m *MockFPEC) Store32(addr uint32, v uint32) error {
	m.log = append(m.log, access{kind: 'S', addr: addr, value: v})
	if m.values[FieldProgram] == 0 {
		return fmt.Errorf("bus fault: store to 0x%08X without program enable", addr)
	}
	m.begin('P', addr, v)
	return nil
}

func (m *MockFPEC) key(v uint32) {
	if m.lockedOut {
		return
	}
	switch {
	case m.keyStage == 0 && v == Key1:
		m.keyStage = 1
	case m.keyStage == 1 && v == m.AcceptedKey2:
		m.keyStage = 0
		m.values[FieldLock] = 0
	default:
		m.lockedOut = true
	}
}

func (m *MockFPEC) begin(op byte, addr, v uint32) {
	m.pendingOp, m.pendingAt, m.pendingVal = op, addr, v
	m.values[FieldBusy] = 1
	m.busyLeft = m.Latency
}

func (m *MockFPEC) complete() {
	op := m.pendingOp
	m.pendingOp = 0
	m.values[FieldBusy] = 0

	switch {
	case m.WriteProtected:
		m.values[FieldWriteProtectError] = 1
		return
	case op == 'P':
		if old, ok := m.memory[m.pendingAt]; ok && old != 0xFFFFFFFF {
			m.values[FieldProgrammingError] = 1
			return
		}
		v := m.pendingVal
		if m.CorruptStores {
			v ^= 1
		}
		m.memory[m.pendingAt] = v
	case op == 'E':
		page := m.pendingAt &^ (PageSize - 1)
		for a := range m.memory {
			if a&^(PageSize-1) == page {
				delete(m.memory, a)
			}
		}
	}

	if !m.SuppressEOP {
		m.values[FieldEndOfOperation] = 1
	}
}

// count returns how many recorded accesses match kind and field.
func (m *MockFPEC) count(kind byte, f Field) int {
	n := 0
	for _, a := range m.log {
		if a.kind == kind && a.field == f {
			n++
		}
	}
	return n
}

// touched reports whether any write, clear or store hit one of the fields.
func (m *MockFPEC) touched(fields ...Field) bool {
	for _, a := range m.log {
		if a.kind == 'S' {
			return true
		}
		if a.kind != 'W' && a.kind != 'C' {
			continue
		}
		for _, f := range fields {
			if a.field == f {
				return true
			}
		}
	}
	return false
}

func (m *MockFPEC) trace() string {
	parts := make([]string, len(m.log))
	for i, a := range m.log {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// MockLogger records messages for testing.
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) {
	l.debugMsgs = append(l.debugMsgs, msg)
}

func (l *MockLogger) Info(msg string, kv ...interface{}) {
	l.infoMsgs = append(l.infoMsgs, msg)
}

func (l *MockLogger) Error(msg string, kv ...interface{}) {
	l.errorMsgs = append(l.errorMsgs, msg)
}
