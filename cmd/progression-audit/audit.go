package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

type repoField struct {
	Name     string `json:"name"`
	RepoType string `json:"repo_type"`
	Area     string `json:"area"`
	Targeted bool   `json:"targeted"`
}

type methodStats struct {
	StructName           string   `json:"struct_name"`
	Method               string   `json:"method"`
	File                 string   `json:"file"`
	Line                 int      `json:"line"`
	StatusRepoWriteCalls int      `json:"status_repo_write_calls"`
	StatusReposWritten   []string `json:"status_repos_written"`
	AggregateCalls       int      `json:"aggregate_calls"`
	AggregateMethodsUsed []string `json:"aggregate_methods_used"`
	Allowed              bool     `json:"allowed,omitempty"`
}

type auditReport struct {
	StatusWriteCallsites      int           `json:"status_write_callsites_outside_aggregates"`
	AggregateOwnedCallsites   int           `json:"aggregate_owned_callsites"`
	MethodsWithResidualWrites int           `json:"methods_with_residual_writes"`
	Residual                  []methodStats `json:"residual"`
	Allowed                   []methodStats `json:"allowed"`
	AggregateAdoption         []methodStats `json:"aggregate_adoption"`
	TargetedRepoFields        []repoField   `json:"targeted_repo_fields"`
	Methods                   []methodStats `json:"methods"`
}

// structFields records the fields of one struct the audit cares about. Nested holds
// fields whose type is another local struct, so s.deps.Repo.Write() can be resolved.
type structFields struct {
	RepoFields      map[string]repoField
	AggregateFields map[string]string
	Nested          map[string]string
}

// Columns that carry progression state. A generic UpdateFields call only counts as a
// status write when the method touches one of these keys.
var statusColumns = map[string]bool{
	"status":       true,
	"completed_at": true,
	"started_at":   true,
	"finished_at":  true,
}

var statusWritePrefixes = []string{"UpdateStatus", "Finish", "ForceFinish", "Mark", "Clear"}

func isStatusWrite(method string, touchesStatusColumn bool) bool {
	for _, p := range statusWritePrefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return method == "UpdateFields" && touchesStatusColumn
}

func areaForRepoType(repoType string) (string, bool) {
	switch strings.TrimSpace(repoType) {
	case "CourseRepo":
		return "Course", true
	case "SubjectRepo":
		return "Subject", true
	case "CourseTraineeRepo":
		return "Enrollment", true
	case "TraineeSubjectRepo", "TraineeTaskRepo":
		return "Progress", true
	case "":
		return "Unknown", false
	default:
		return "Other", false
	}
}

func parseServices(dir string) (*token.FileSet, map[string]*ast.File, error) {
	fset := token.NewFileSet()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	files := map[string]*ast.File{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		f, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return nil, nil, err
		}
		files[path] = f
	}
	return fset, files, nil
}

func collectStructFields(file *ast.File, out map[string]structFields) {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || st.Fields == nil {
				continue
			}
			sf := structFields{
				RepoFields:      map[string]repoField{},
				AggregateFields: map[string]string{},
				Nested:          map[string]string{},
			}
			for _, field := range st.Fields.List {
				for _, name := range field.Names {
					switch t := field.Type.(type) {
					case *ast.Ident:
						sf.Nested[name.Name] = t.Name
					case *ast.SelectorExpr:
						pkgIdent, ok := t.X.(*ast.Ident)
						if !ok {
							continue
						}
						typeName := t.Sel.Name
						switch {
						case pkgIdent.Name == "repos" && strings.HasSuffix(typeName, "Repo"):
							area, targeted := areaForRepoType(typeName)
							sf.RepoFields[name.Name] = repoField{Name: name.Name, RepoType: typeName, Area: area, Targeted: targeted}
						case pkgIdent.Name == "domainagg" && strings.HasSuffix(typeName, "Aggregate"):
							sf.AggregateFields[name.Name] = typeName
						}
					}
				}
			}
			if len(sf.RepoFields) > 0 || len(sf.AggregateFields) > 0 || len(sf.Nested) > 0 {
				out[ts.Name.Name] = sf
			}
		}
	}
}

// resolveField walks recv.a.b... down to the struct owning the final field.
func resolveField(fieldsByStruct map[string]structFields, recvType string, path []string) (structFields, string, bool) {
	sf, ok := fieldsByStruct[recvType]
	if !ok || len(path) == 0 {
		return structFields{}, "", false
	}
	for _, hop := range path[:len(path)-1] {
		next, ok := sf.Nested[hop]
		if !ok {
			return structFields{}, "", false
		}
		if sf, ok = fieldsByStruct[next]; !ok {
			return structFields{}, "", false
		}
	}
	return sf, path[len(path)-1], true
}

// selectorPath turns s.deps.Courses into ("s", ["deps", "Courses"]).
func selectorPath(expr ast.Expr) (string, []string) {
	var path []string
	for {
		switch e := expr.(type) {
		case *ast.SelectorExpr:
			path = append([]string{e.Sel.Name}, path...)
			expr = e.X
		case *ast.Ident:
			return e.Name, path
		default:
			return "", nil
		}
	}
}

func touchesStatusColumn(body *ast.BlockStmt) bool {
	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		var key ast.Expr
		switch x := n.(type) {
		case *ast.KeyValueExpr:
			key = x.Key
		case *ast.IndexExpr:
			key = x.Index
		default:
			return !found
		}
		if lit, ok := key.(*ast.BasicLit); ok && lit.Kind == token.STRING {
			if s, err := strconv.Unquote(lit.Value); err == nil && statusColumns[s] {
				found = true
			}
		}
		return !found
	})
	return found
}

func collectMethodStats(fset *token.FileSet, file *ast.File, relFile string, fieldsByStruct map[string]structFields, out *[]methodStats) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Body == nil || len(fd.Recv.List) == 0 {
			continue
		}
		recvName, recvType := recvInfo(fd.Recv.List[0])
		if recvType == "" || recvName == "" {
			continue
		}
		if _, ok := fieldsByStruct[recvType]; !ok {
			continue
		}
		statusCols := touchesStatusColumn(fd.Body)

		writes := 0
		written := map[string]bool{}
		aggCalls := 0
		aggMethods := map[string]bool{}

		ast.Inspect(fd.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			fnSel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			base, path := selectorPath(fnSel.X)
			if base != recvName || len(path) == 0 {
				return true
			}
			sf, field, ok := resolveField(fieldsByStruct, recvType, path)
			if !ok {
				return true
			}
			method := fnSel.Sel.Name
			if rf, ok := sf.RepoFields[field]; ok && rf.Targeted && isStatusWrite(method, statusCols) {
				writes++
				written[rf.RepoType+"."+method] = true
				return true
			}
			if _, ok := sf.AggregateFields[field]; ok {
				aggCalls++
				aggMethods[method] = true
			}
			return true
		})

		*out = append(*out, methodStats{
			StructName:           recvType,
			Method:               fd.Name.Name,
			File:                 filepath.ToSlash(relFile),
			Line:                 fset.Position(fd.Pos()).Line,
			StatusRepoWriteCalls: writes,
			StatusReposWritten:   sortedKeys(written),
			AggregateCalls:       aggCalls,
			AggregateMethodsUsed: sortedKeys(aggMethods),
		})
	}
}

func buildReport(fieldsByStruct map[string]structFields, methods []methodStats, allow map[string]bool) auditReport {
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].File == methods[j].File {
			return methods[i].Line < methods[j].Line
		}
		return methods[i].File < methods[j].File
	})

	var report auditReport
	for i := range methods {
		m := &methods[i]
		if m.StatusRepoWriteCalls > 0 {
			if allow[m.StructName+"."+m.Method] {
				m.Allowed = true
				report.Allowed = append(report.Allowed, *m)
			} else {
				report.StatusWriteCallsites += m.StatusRepoWriteCalls
				report.MethodsWithResidualWrites++
				report.Residual = append(report.Residual, *m)
			}
		}
		if m.AggregateCalls > 0 {
			report.AggregateOwnedCallsites += m.AggregateCalls
			report.AggregateAdoption = append(report.AggregateAdoption, *m)
		}
	}
	report.Methods = methods

	keys := []string{}
	fields := map[string]repoField{}
	for structName, sf := range fieldsByStruct {
		for _, rf := range sf.RepoFields {
			if !rf.Targeted {
				continue
			}
			k := structName + "." + rf.Name
			keys = append(keys, k)
			fields[k] = rf
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		report.TargetedRepoFields = append(report.TargetedRepoFields, fields[k])
	}
	return report
}

func recvInfo(field *ast.Field) (string, string) {
	if field == nil || len(field.Names) == 0 {
		return "", ""
	}
	recvName := field.Names[0].Name
	switch t := field.Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return recvName, id.Name
		}
	case *ast.Ident:
		return recvName, t.Name
	}
	return "", ""
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
