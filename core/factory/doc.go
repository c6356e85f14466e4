// Package factory provides a small generic registry used to instantiate
// pluggable modules, such as metrics sinks and run-log stores, from
// configuration. A module is described by a type name and a map of raw
// settings that the factory decodes into its own typed struct.
//
//	reg := factory.NewRegistry[io.Writer]()
//	reg.Register("file", func(conf map[string]any) (io.Writer, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return os.Create(c.Path)
//	})
package factory
