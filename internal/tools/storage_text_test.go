package tools

import "testing"

func TestStorageToText_Basic(t *testing.T) {
	got, err := storageToText(`<p>Hello <strong>world</strong></p><p>Next<br/>Line</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Hello world\n\nNext\nLine"
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_List(t *testing.T) {
	got, err := storageToText(`<ul><li>One</li><li>Two</li></ul>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "- One\n- Two"
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_NestedList(t *testing.T) {
	got, err := storageToText(`<ul><li>Top<ul><li>Inner</li></ul></li></ul>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "- Top\n  - Inner"
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_Headings(t *testing.T) {
	got, err := storageToText(`<h1>Release Notes</h1><p>Body copy.</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Release Notes\n\nBody copy."
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_Entities(t *testing.T) {
	got, err := storageToText(`<p>Fish &amp; chips&nbsp;daily</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Fish & chips daily"
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_CDATAPlainTextBody(t *testing.T) {
	got, err := storageToText(`<ac:plain-text-body><![CDATA[line1
line2]]></ac:plain-text-body>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "line1\nline2"
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_CodeMacroKeepsWhitespace(t *testing.T) {
	got, err := storageToText(`<ac:structured-macro ac:name="code"><ac:plain-text-body><![CDATA[func main() {
	println("hi")
}]]></ac:plain-text-body></ac:structured-macro>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "func main() {\n\tprintln(\"hi\")\n}"
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_PageLinkUsesTitle(t *testing.T) {
	got, err := storageToText(`<p>See <ac:link><ri:page ri:content-title="Target Page"></ri:page></ac:link> for details.</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "See Target Page for details."
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}

func TestStorageToText_AttachmentAndURL(t *testing.T) {
	got, err := storageToText(`<p>Download <ac:link><ri:attachment ri:filename="report.pdf"></ri:attachment></ac:link> or visit <ac:link><ri:url ri:value="https://status.example.com"></ri:url></ac:link>.</p>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Download report.pdf or visit https://status.example.com."
	if got != want {
		t.Fatalf("unexpected output:\nwant:\n%q\ngot:\n%q", want, got)
	}
}
