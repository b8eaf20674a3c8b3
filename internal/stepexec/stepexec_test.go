package stepexec

import (
	"strings"
	"testing"

	"github.com/localpdk/pdk/internal/model"
)

func TestContainerExecutorForUnsupportedKind(t *testing.T) {
	_, err := ContainerExecutorFor("bogus")
	if err == nil {
		t.Fatal("expected an error for an unregistered step kind")
	}
	var unsupported *UnsupportedStepKind
	if !asUnsupported(err, &unsupported) {
		t.Fatalf("expected *UnsupportedStepKind, got %T", err)
	}
}

func asUnsupported(err error, target **UnsupportedStepKind) bool {
	if e, ok := err.(*UnsupportedStepKind); ok {
		*target = e
		return true
	}
	return false
}

func TestContainerExecutorForCaseInsensitive(t *testing.T) {
	if _, err := ContainerExecutorFor(model.StepKind("SCRIPT")); err != nil {
		t.Fatalf("expected SCRIPT to resolve case-insensitively: %v", err)
	}
}

func TestContainerWorkingDirNormalization(t *testing.T) {
	cases := []struct{ workspace, wd, want string }{
		{"/workspace", "", "/workspace"},
		{"/workspace", "/abs/path", "/abs/path"},
		{"/workspace", "./sub", "/workspace/sub"},
		{"/workspace", "sub//nested", "/workspace/sub/nested"},
	}
	for _, c := range cases {
		if got := containerWorkingDir(c.workspace, c.wd); got != c.want {
			t.Errorf("containerWorkingDir(%q,%q) = %q, want %q", c.workspace, c.wd, got, c.want)
		}
	}
}

func TestScriptShellRejectsPowerShell(t *testing.T) {
	step := &model.Step{Shell: model.ShellPwsh}
	if _, err := scriptShell(step); err == nil {
		t.Fatal("expected script step to reject pwsh")
	}
}

func TestScriptShellDefaultsToBash(t *testing.T) {
	step := &model.Step{}
	shell, err := scriptShell(step)
	if err != nil || shell != model.ShellBash {
		t.Fatalf("scriptShell() = %q, %v, want bash", shell, err)
	}
}

func TestBuildFindCommandDoubleStarPrefix(t *testing.T) {
	got := buildFindCommand("/workspace", "**/generated.cs")
	want := "find '/workspace' -name 'generated.cs' -type f"
	if got != want {
		t.Errorf("buildFindCommand = %q, want %q", got, want)
	}
}

func TestBuildFindCommandMidDoubleStar(t *testing.T) {
	got := buildFindCommand("/workspace", "src/**/main.cs")
	want := "find '/workspace/src' -name 'main.cs' -type f"
	if got != want {
		t.Errorf("buildFindCommand = %q, want %q", got, want)
	}
}

func TestBuildFindCommandBarePattern(t *testing.T) {
	got := buildFindCommand("/workspace", "foo.ext")
	want := "find '/workspace' -maxdepth 1 -name 'foo.ext' -type f"
	if got != want {
		t.Errorf("buildFindCommand = %q, want %q", got, want)
	}
}

func TestNpmCommandLineBuild(t *testing.T) {
	args, err := npmCommandLine("build", "", "")
	if err != nil {
		t.Fatalf("npmCommandLine: %v", err)
	}
	if strings.Join(args, " ") != "npm run build" {
		t.Errorf("args = %v", args)
	}
}

func TestNpmCommandLineRunRequiresScript(t *testing.T) {
	if _, err := npmCommandLine("run", "", ""); err == nil {
		t.Fatal("expected error for npm run without a script")
	}
}

func TestNpmCommandLineRunWithArguments(t *testing.T) {
	args, err := npmCommandLine("run", "lint", "--fix")
	if err != nil {
		t.Fatalf("npmCommandLine: %v", err)
	}
	want := "npm run lint -- --fix"
	if strings.Join(args, " ") != want {
		t.Errorf("args = %q, want %q", strings.Join(args, " "), want)
	}
}

func TestDotnetCommandLineConfigurationOnlyOnAllowedCommands(t *testing.T) {
	args := dotnetCommandLine("build", "proj.csproj", "Release", "", "")
	want := "dotnet build proj.csproj --configuration Release"
	if strings.Join(args, " ") != want {
		t.Errorf("args = %q, want %q", strings.Join(args, " "), want)
	}

	args = dotnetCommandLine("restore", "proj.csproj", "Release", "", "")
	want = "dotnet restore proj.csproj"
	if strings.Join(args, " ") != want {
		t.Errorf("args = %q, want %q", strings.Join(args, " "), want)
	}
}

func TestDockerCommandLineBuildDefaultsContext(t *testing.T) {
	args, err := dockerCommandLine("build", map[string]string{"dockerfile": "Dockerfile", "tags": "a:1, b:2"})
	if err != nil {
		t.Fatalf("dockerCommandLine: %v", err)
	}
	want := "docker build -f Dockerfile -t a:1 -t b:2 ."
	if strings.Join(args, " ") != want {
		t.Errorf("args = %q, want %q", strings.Join(args, " "), want)
	}
}

func TestDockerCommandLineTagRequiresBothInputs(t *testing.T) {
	if _, err := dockerCommandLine("tag", map[string]string{"sourceimage": "a"}); err == nil {
		t.Fatal("expected error when targetTag is missing")
	}
}
