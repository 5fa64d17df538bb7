// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	JDKNotFoundId Id = iota + 1
	JDKVersionMismatchId
	UnsupportedVersionId
	WorkspaceBusyId
	ConfigLoadFailedId
	DownloadFailedId
	ArtifactMissingId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
	}
)

var (
	render = glamour.Render

	jdkNotFoundIssue = &Issue{
		id: JDKNotFoundId,
		mdMsg: `
# Java was not found!

The node jars need an Oracle JDK runtime and trondev could not run ` + "`java -version`" + `.

## Things you can try:
- Check which JDK version is required:
~~~
$ trondev config show
~~~
- Install that JDK and make sure ` + "`java`" + ` is on your PATH
- Point trondev at a specific binary in your config file:
~~~cue
jdk: binary: "/usr/lib/jvm/java-8-openjdk/bin/java"
~~~`,
		docLinks: []HttpLink{"https://www.oracle.com/java/technologies/downloads/archive/"},
	}

	jdkVersionMismatchIssue = &Issue{
		id: JDKVersionMismatchId,
		mdMsg: `
# Wrong Java version!

The JDK reported by ` + "`java -version`" + ` does not match ` + "`jdk.required`" + `.
Other runtimes are not supported by the node jars.

## Things you can try:
- Install the required JDK alongside your current one
- Switch the active JDK (for example with ` + "`update-alternatives --config java`" + `)
- Set ` + "`jdk.binary`" + ` in your config file to the matching binary`,
	}

	unsupportedVersionIssue = &Issue{
		id: UnsupportedVersionId,
		mdMsg: `
# Node version not supported!

trondev can install the legacy release (` + "`releases.legacy`" + `), any release from
` + "`releases.minimum_ranged`" + ` up to ` + "`releases.latest`" + `, or ` + "`latest`" + `.

## Things you can try:
- List the published releases and their support:
~~~
$ trondev versions
~~~
- Install the latest release:
~~~
$ trondev init --version latest
~~~`,
	}

	workspaceBusyIssue = &Issue{
		id: WorkspaceBusyId,
		mdMsg: `
# Workspace is busy!

Another trondev process is provisioning this directory. Running two provisioning
runs against the same workspace would corrupt the node directories.

## Things you can try:
- Wait for the other run to finish and retry
- Remove ` + "`.trondev/lock`" + ` only if no other trondev process is running`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the CUE syntax of your config file
- Show the effective configuration:
~~~
$ trondev config show
~~~
- Recreate the default file:
~~~
$ trondev config init
~~~`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Download failed!

A node jar could not be downloaded from the release server. The remaining
provisioning steps need both jars, so the run stopped here.

## Things you can try:
- Check your network connection and retry ` + "`trondev init`" + `
- Verify the release exists for the version you asked for
- Override ` + "`releases.base_url`" + ` if you use a mirror`,
	}

	artifactMissingIssue = &Issue{
		id: ArtifactMissingId,
		mdMsg: `
# Artifact missing!

A jar or logback.xml was not found at the workspace root. Jars are moved into the
node directories once, so placing them again requires fetching them again.

## Things you can try:
~~~
$ trondev init --reset
~~~`,
	}

	issues = map[Id]*Issue{
		jdkNotFoundIssue.Id():        jdkNotFoundIssue,
		jdkVersionMismatchIssue.Id(): jdkVersionMismatchIssue,
		unsupportedVersionIssue.Id(): unsupportedVersionIssue,
		workspaceBusyIssue.Id():      workspaceBusyIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		downloadFailedIssue.Id():     downloadFailedIssue,
		artifactMissingIssue.Id():    artifactMissingIssue,
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Render renders the issue as terminal Markdown using the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
