package message

import (
	"fmt"
)

// Clone creates a writable copy of src through create. The copy mirrors the
// body kind of src, carries deep copies of its body, attachments and
// properties, and every transport header.
//
// Per-field failures do not stop the copy: they are collected in skipped and
// the field is left unset on dst. err is non-nil only when create fails.
func Clone(src Message, create Factory) (dst Message, skipped []error, err error) {
	if create == nil {
		create = MemoryFactory()
	}
	kind := src.Kind()
	dst, err = create(kind)
	if err != nil {
		return nil, nil, fmt.Errorf("message: create %s copy: %w", kind, err)
	}
	if dst == nil {
		return nil, nil, fmt.Errorf("message: create %s copy: factory returned nil", kind)
	}

	skip := func(err error) {
		if err != nil {
			skipped = append(skipped, err)
		}
	}

	skip(copyBody(src, dst, kind))

	if names, err := src.AttachmentNames(); err != nil {
		skip(err)
	} else {
		for _, name := range names {
			data, err := src.Attachment(name)
			if err != nil {
				skip(err)
				continue
			}
			skip(dst.SetAttachment(name, data))
		}
	}

	if names, err := src.PropertyNames(); err != nil {
		skip(err)
	} else {
		for _, name := range names {
			v, ok, err := src.Property(name)
			if err != nil {
				skip(err)
				continue
			}
			if !ok {
				continue
			}
			skip(CopyProperty(dst, name, v))
		}
	}

	for _, f := range headerFields {
		v, err := src.Header(f)
		if err != nil {
			skip(err)
			continue
		}
		skip(dst.SetHeader(f, v))
	}

	return dst, skipped, nil
}

func copyBody(src, dst Message, kind Kind) error {
	switch kind {
	case KindBytes:
		b, err := src.Bytes()
		if err != nil {
			return err
		}
		return dst.SetBytes(b)
	case KindObject:
		v, err := src.Object()
		if err != nil {
			return err
		}
		return dst.SetObject(deepCopy(v))
	case KindStream:
		items, err := src.Stream()
		if err != nil {
			return err
		}
		return dst.SetStream(items)
	default:
		s, err := src.Text()
		if err != nil {
			return err
		}
		return dst.SetText(s)
	}
}
