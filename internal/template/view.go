package template

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
)

// View is a named template with its data
type View struct {
	factory *Factory
	name    string
	data    Data
}

// Name returns the view name
func (v *View) Name() string {
	return v.name
}

// Data returns the view data
func (v *View) Data() Data {
	return v.data
}

// With adds a value to the view data
func (v *View) With(key string, value interface{}) *View {
	v.data[key] = value
	return v
}

// Render renders the view to a string
func (v *View) Render(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := v.RenderTo(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo renders the view to w
func (v *View) RenderTo(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := v.factory.template(v.name)
	if err != nil {
		return err
	}

	v.factory.compose(v)
	if err := t.Execute(w, map[string]interface{}(v.data)); err != nil {
		return fmt.Errorf("render view %s: %w", v.name, err)
	}
	return nil
}

func quote(s string) string {
	return strconv.Quote(s)
}
