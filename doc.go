/*
Package dyncc compiles a go source file at runtime and loads it into the running process, based on [goloader].

# Underwater

 1. The go toolchain of the machine compiles the source into an object file inside a scratch directory,
    imports are resolved by the module of the host (see [GoToolchain.ModuleDir]).
 2. The object is kept in memory as a serialized goloader linker, the scratch directory is removed.
 3. The linker is linked against the symbols of the host executable into an executable memory section,
    just as [goloader] does for any relocatable object file.

# Units

A unit is a single file named <identifier>.go. Its package clause, if any, is kept verbatim,
otherwise it is compiled inside [DefaultPackage]. The unit should declare a constructor

	func New<identifier>() any

so that [New] can build instances of it and check them against an interface of the host.

	c := dyncc.NewCompiler()
	cls, err := c.Compile(ctx, "plugins/Greeter.go")
	if err != nil {
		// errors.Is(err, dyncc.ErrCompilationFailed) ...
	}
	defer cls.Free()
	g, err := dyncc.New[Greeter](cls)

# Notes

 1. Current only target on go 1.21+, the toolchain must be the same release as the host runtime.
 2. The host must be built with the symbol table (no -ldflags=-s) for goloader to resolve runtime symbols.
 3. Interfaces of the host used by units but never referenced by host code should be registered by [RegisterTypes] or [WithTypes].
 4. Nothing is sandboxed, a unit runs with every right of the host.
 5. goloader needs the sdk internals copied by 'compiler prepare' before a unit can be linked,
    which is also required by the end to end tests enabled with DYNCC_E2E=1:

	compiler prepare
	DYNCC_E2E=1 go test ./...

# Compile tool

The compiler command compiles and loads units from the command line, and prepares the go sdk goloader depends on:

	go install github.com/ZenLiuCN/dyncc/compiler@latest
	compiler -h

[goloader]: https://github.com/pkujhd/goloader
*/
package dyncc
