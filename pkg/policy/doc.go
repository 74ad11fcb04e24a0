// Package policy loads the compiled policy program and keeps it current.
//
// A Manager compiles the configured HCL file and publishes the result as
// the active *interpreter.Program. With watching enabled the file is
// observed through fsnotify and recompiled after a quiet period. A reload
// that fails to compile leaves the previous program active.
//
// # Usage
//
//	mgr, err := policy.NewManager(&cfg.Policy, compiler.New(d, mods),
//	    policy.WithLogger(logger),
//	    policy.WithReloadHook(collector.RecordPolicyReload),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := mgr.Load(ctx); err != nil {
//	    return err
//	}
//	go mgr.Watch(ctx)
//
//	root, err := mgr.Section("accounting")
package policy
