package dom

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkeleton(t *testing.T) {
	html, err := Wrap(context.Background(), Options{Lang: "fr", Title: `A "quoted" <title>`}, `<img src="x.jpg">`)
	require.NoError(t, err)

	assert.Equal(t,
		`<!DOCTYPE html><html lang="fr"><head><meta charset="utf-8"><title>A &#34;quoted&#34; &lt;title&gt;</title></head><body><img src="x.jpg"></body></html>`,
		html)
}

func TestStaticBuilder(t *testing.T) {
	builder := NewStaticBuilder(Options{Visual: true})
	doc, err := builder.Build(context.Background(), `<main><button>Save</button></main>`)
	require.NoError(t, err)

	assert.True(t, doc.Visual())
	assert.Contains(t, doc.Markup(), `<html lang="en">`)
	assert.Contains(t, doc.Markup(), "<title>"+DefaultTitle+"</title>")

	tree := doc.Tree()
	require.NotNil(t, tree)
	assert.Equal(t, "Save", tree.Find("body main button").Text())
	assert.Equal(t, "en", tree.Find("html").AttrOr("lang", ""))

	_, scriptable := doc.(Scriptable)
	assert.False(t, scriptable)

	require.NoError(t, doc.Release())
	require.NoError(t, doc.Release())
	assert.Nil(t, doc.Tree())
}

func TestStaticBuilderNonVisual(t *testing.T) {
	doc, err := NewStaticBuilder(Options{Visual: false}).Build(context.Background(), "<p>x</p>")
	require.NoError(t, err)
	defer doc.Release()
	assert.False(t, doc.Visual())
}

func TestBrowserBuilder(t *testing.T) {
	if os.Getenv("TEMPLAUDIT_BROWSER_TESTS") == "" {
		t.Skip("set TEMPLAUDIT_BROWSER_TESTS=1 to run tests that start Chrome")
	}

	builder := NewBrowserBuilder(DefaultOptions(), os.Getenv("TEMPLAUDIT_CHROME_PATH"))
	doc, err := builder.Build(context.Background(), `<p id="greeting">hello</p>`)
	require.NoError(t, err)
	defer doc.Release()

	scriptable, ok := doc.(Scriptable)
	require.True(t, ok)

	require.NoError(t, scriptable.Inject(context.Background(), `window.answer = 42;`))

	var answer int
	require.NoError(t, scriptable.Evaluate(context.Background(), `Promise.resolve(window.answer)`, &answer))
	assert.Equal(t, 42, answer)

	var text string
	require.NoError(t, scriptable.Evaluate(context.Background(), `document.getElementById("greeting").textContent`, &text))
	assert.Equal(t, "hello", text)

	var lang string
	require.NoError(t, scriptable.Evaluate(context.Background(), `document.documentElement.lang`, &lang))
	assert.Equal(t, "en", lang)

	assert.Error(t, scriptable.Inject(context.Background(), `throw new Error("boom")`))

	require.NoError(t, doc.Release())
	require.NoError(t, doc.Release())
	assert.Nil(t, doc.Tree())
}
