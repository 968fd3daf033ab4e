package message

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_Defaults verifies the headers of a freshly created message.
func TestNew_Defaults(t *testing.T) {
	m := New(KindText)

	id, err := m.Header(HeaderMessageID)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	p, err := m.Header(HeaderPriority)
	require.NoError(t, err)
	assert.Equal(t, DefaultPriority, p)

	dm, err := m.Header(HeaderDeliveryMode)
	require.NoError(t, err)
	assert.Equal(t, Persistent, dm)

	ts, err := m.Header(HeaderTimestamp)
	require.NoError(t, err)
	assert.False(t, ts.(time.Time).IsZero())

	other := New(KindText)
	otherID, _ := other.Header(HeaderMessageID)
	assert.NotEqual(t, id, otherID)
}

// TestBody_KindMismatch verifies body accessors reject the wrong kind.
func TestBody_KindMismatch(t *testing.T) {
	m := NewText("<a/>")

	_, err := m.Bytes()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrongKind))
	assert.True(t, IsAccessError(err))

	require.Error(t, m.SetObject(map[string]any{}))

	s, err := m.Text()
	require.NoError(t, err)
	assert.Equal(t, "<a/>", s)
}

// TestSetHeader_Validation verifies header values are type checked.
func TestSetHeader_Validation(t *testing.T) {
	m := New(KindText)

	tests := []struct {
		name  string
		field HeaderField
		value any
		ok    bool
	}{
		{"correlation string", HeaderCorrelationID, "c-1", true},
		{"correlation int", HeaderCorrelationID, 1, false},
		{"priority in range", HeaderPriority, 9, true},
		{"priority too high", HeaderPriority, 10, false},
		{"priority negative", HeaderPriority, -1, false},
		{"delivery mode", HeaderDeliveryMode, NonPersistent, true},
		{"delivery mode invalid", HeaderDeliveryMode, DeliveryMode(7), false},
		{"expiration", HeaderExpiration, time.Unix(10, 0), true},
		{"expiration string", HeaderExpiration, "tomorrow", false},
		{"redelivered", HeaderRedelivered, true, true},
		{"unknown field", HeaderField(99), "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SetHeader(tt.field, tt.value)
			if tt.ok {
				require.NoError(t, err)
				got, err := m.Header(tt.field)
				require.NoError(t, err)
				assert.Equal(t, tt.value, got)
				return
			}
			require.Error(t, err)
			assert.True(t, IsAccessError(err))
		})
	}
}

// TestReadOnly verifies writes fail on a read-only message while reads succeed.
func TestReadOnly(t *testing.T) {
	m := NewText("body")
	require.NoError(t, m.SetProperty("A", "1"))
	m.SetReadOnly(true)

	assert.ErrorIs(t, m.SetText("other"), ErrReadOnly)
	assert.ErrorIs(t, m.SetProperty("B", "2"), ErrReadOnly)
	assert.ErrorIs(t, m.RemoveProperty("A"), ErrReadOnly)
	assert.ErrorIs(t, m.SetHeader(HeaderType, "t"), ErrReadOnly)
	assert.ErrorIs(t, m.SetAttachment("f", []byte("x")), ErrReadOnly)

	v, ok, err := m.Property("A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

// TestProperties_SortedNames verifies property names come back sorted.
func TestProperties_SortedNames(t *testing.T) {
	m := New(KindText)
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, SetString(m, k, k))
	}
	names, err := m.PropertyNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	require.NoError(t, m.RemoveProperty("b"))
	_, ok, err := m.Property("b")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, m.SetProperty("", "x"), ErrInvalidProperty)
	assert.ErrorIs(t, m.SetProperty("nil", nil), ErrInvalidProperty)
}

// TestClone_IndependentCopy verifies a clone carries body, typed properties
// and headers, and that mutating it leaves the source untouched.
func TestClone_IndependentCopy(t *testing.T) {
	src := NewText("<order id=\"1\"/>")
	require.NoError(t, src.SetHeader(HeaderCorrelationID, "corr-1"))
	require.NoError(t, src.SetHeader(HeaderPriority, 7))
	require.NoError(t, src.SetHeader(HeaderReplyTo, "replies"))
	require.NoError(t, src.SetAttachment("doc", []byte{1, 2, 3}))

	require.NoError(t, SetBool(src, "b", true))
	require.NoError(t, SetByte(src, "i8", 8))
	require.NoError(t, SetShort(src, "i16", 16))
	require.NoError(t, SetInt(src, "i32", 32))
	require.NoError(t, SetLong(src, "i64", 64))
	require.NoError(t, SetFloat(src, "f32", 1.5))
	require.NoError(t, SetDouble(src, "f64", 2.5))
	require.NoError(t, SetString(src, "s", "str"))
	require.NoError(t, SetObjectProperty(src, "obj", map[string]any{"k": []any{"v"}}))
	src.SetReadOnly(true)

	dst, skipped, err := Clone(src, nil)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.NotSame(t, src, dst)

	assert.Equal(t, KindText, dst.Kind())
	body, err := dst.Text()
	require.NoError(t, err)
	assert.Equal(t, "<order id=\"1\"/>", body)

	srcNames, _ := src.PropertyNames()
	dstNames, _ := dst.PropertyNames()
	assert.Equal(t, srcNames, dstNames)
	for _, n := range srcNames {
		sv, _, _ := src.Property(n)
		dv, _, _ := dst.Property(n)
		assert.Equal(t, sv, dv, n)
		assert.IsType(t, sv, dv, n)
	}

	for _, f := range HeaderFields() {
		sv, err := src.Header(f)
		require.NoError(t, err)
		dv, err := dst.Header(f)
		require.NoError(t, err)
		assert.Equal(t, sv, dv, f.String())
	}

	att, err := dst.Attachment("doc")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, att)

	// The clone is writable and independent.
	require.NoError(t, dst.SetText("changed"))
	require.NoError(t, SetString(dst, "s", "other"))
	obj, _, _ := dst.Property("obj")
	obj.(map[string]any)["k"] = "mutated"

	body, _ = src.Text()
	assert.Equal(t, "<order id=\"1\"/>", body)
	s, _, _ := src.Property("s")
	assert.Equal(t, "str", s)
	srcObj, _, _ := src.Property("obj")
	assert.Equal(t, []any{"v"}, srcObj.(map[string]any)["k"])
}

// TestClone_MirrorsKind verifies bytes and stream bodies are deep copied.
func TestClone_MirrorsKind(t *testing.T) {
	src := NewBytes([]byte("raw"))
	dst, _, err := Clone(src, MemoryFactory())
	require.NoError(t, err)
	assert.Equal(t, KindBytes, dst.Kind())
	b, err := dst.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	st := New(KindStream)
	require.NoError(t, st.SetStream([]any{"a", int32(1)}))
	cp, _, err := Clone(st, nil)
	require.NoError(t, err)
	items, err := cp.Stream()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", int32(1)}, items)
}

// TestClone_FactoryFailure verifies only creation failure is fatal.
func TestClone_FactoryFailure(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Clone(NewText("x"), func(Kind) (Message, error) { return nil, boom })
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// TestClone_SkipsFailedFields verifies per-field failures are collected.
func TestClone_SkipsFailedFields(t *testing.T) {
	src := NewText("x")
	require.NoError(t, SetString(src, "a", "1"))

	dst, skipped, err := Clone(src, func(Kind) (Message, error) {
		m := New(KindBytes) // wrong kind: the text body cannot be written
		return m, nil
	})
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], ErrWrongKind)

	v, ok, _ := dst.Property("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

// TestVocabulary_Defaults verifies the documented defaults of the shared keys.
func TestVocabulary_Defaults(t *testing.T) {
	m := New(KindText)

	inTime, err := InTime.Get(m)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), inTime)

	eventID, err := EventID.Get(m)
	require.NoError(t, err)
	assert.Equal(t, int32(2000), eventID)

	status, _ := WorkflowStatus.Get(m)
	assert.Equal(t, int32(-1), status)

	incr, _ := ExecutingIncr.Get(m)
	assert.Equal(t, int32(0), incr)

	alert, _ := IsAlert.Get(m)
	assert.False(t, alert)

	src, _ := Source.Get(m)
	assert.Equal(t, "", src)

	table, _ := DataTable.Get(m)
	assert.Nil(t, table)

	assert.Equal(t, "CARRY_FORWARD_CONTEXT", CarryForwardContext.Name)
	assert.Equal(t, "WORK_FLOW_INST_ID", WorkflowInstID.Name)
}

// TestVocabulary_TypedAccess verifies setters store typed values and getters
// widen or fall back to the default.
func TestVocabulary_TypedAccess(t *testing.T) {
	m := New(KindText)

	require.NoError(t, InTime.Set(m, 1700000000000))
	v, _, _ := m.Property("IN_TIME")
	assert.IsType(t, int64(0), v)

	require.NoError(t, SetInt(m, "OUT_TIME", 42))
	out, err := OutTime.Get(m)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)

	require.NoError(t, SetBool(m, "EVENT_ID", true))
	id, err := EventID.Get(m)
	require.NoError(t, err)
	assert.Equal(t, int32(2000), id)

	require.NoError(t, SetString(m, "IS_ALERT", "true"))
	alert, _ := IsAlert.Get(m)
	assert.True(t, alert)
}

// TestParseValue verifies text conversion per declared type.
func TestParseValue(t *testing.T) {
	tests := []struct {
		typ  PropertyType
		in   string
		want any
	}{
		{TypeString, "5", "5"},
		{TypeBoolean, "true", true},
		{TypeByte, "-3", int8(-3)},
		{TypeShort, "300", int16(300)},
		{TypeInteger, " 5 ", int32(5)},
		{TypeLong, "9000000000", int64(9000000000)},
		{TypeFloat, "1.5", float32(1.5)},
		{TypeDouble, "2.25", 2.25},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			got, err := ParseValue(tt.typ, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.typ, TypeOf(got))
		})
	}

	_, err := ParseValue(TypeByte, "300")
	assert.Error(t, err)
	_, err = ParseValue(TypeObject, "x")
	assert.ErrorIs(t, err, ErrInvalidProperty)

	typ, ok := ParsePropertyType("integer")
	assert.True(t, ok)
	assert.Equal(t, TypeInteger, typ)
	_, ok = ParsePropertyType("decimal")
	assert.False(t, ok)
}

// TestMemory_ConcurrentAccess exercises the message under concurrent use.
func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewText("x")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = SetInt(m, "n", int32(j))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _, _ = m.Property("n")
				_, _ = m.PropertyNames()
			}
		}()
	}
	wg.Wait()

	v, ok, err := m.Property("n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.IsType(t, int32(0), v)
}
